package services

import (
	"context"
	"errors"
	"reflect"
	"sort"
	"testing"
	"time"

	"eduflow/internal/coursetree"
	"eduflow/internal/models"
	"eduflow/internal/repository"
)

func ptr(v int64) *int64 { return &v }

// Мок-хранилище разделов: InCourseTx работает над копией состояния и
// откатывается при ошибке — атомарность как у настоящей транзакции.
type memSectionRepo struct {
	sections map[int64]models.Section
	quizzes  map[int64]*int64 // id теста -> id раздела
	nextID   int64
}

func newMemSectionRepo(records ...models.Section) *memSectionRepo {
	m := &memSectionRepo{
		sections: make(map[int64]models.Section),
		quizzes:  make(map[int64]*int64),
	}
	for _, rec := range records {
		m.sections[rec.ID] = rec
		if rec.ID > m.nextID {
			m.nextID = rec.ID
		}
	}
	return m
}

func (m *memSectionRepo) snapshot() map[int64]models.Section {
	cp := make(map[int64]models.Section, len(m.sections))
	for id, s := range m.sections {
		cp[id] = s
	}
	return cp
}

func (m *memSectionRepo) ListByCourse(_ context.Context, courseID int64) ([]models.Section, error) {
	return listCourse(m.sections, courseID), nil
}

func listCourse(sections map[int64]models.Section, courseID int64) []models.Section {
	var out []models.Section
	for _, s := range sections {
		if s.CourseID == courseID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *memSectionRepo) GetByID(_ context.Context, id int64) (*models.Section, error) {
	s, ok := m.sections[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *memSectionRepo) InCourseTx(ctx context.Context, _ int64, fn func(ctx context.Context, tx repository.SectionTx) error) error {
	staging := m.snapshot()
	quizStaging := make(map[int64]*int64, len(m.quizzes))
	for id, sid := range m.quizzes {
		quizStaging[id] = sid
	}
	tx := &memSectionTx{repo: m, sections: staging, quizzes: quizStaging}
	if err := fn(ctx, tx); err != nil {
		return err // staging отброшен
	}
	m.sections = staging
	m.quizzes = quizStaging
	return nil
}

type memSectionTx struct {
	repo     *memSectionRepo
	sections map[int64]models.Section
	quizzes  map[int64]*int64
}

func (t *memSectionTx) ListByCourse(_ context.Context, courseID int64) ([]models.Section, error) {
	return listCourse(t.sections, courseID), nil
}

func (t *memSectionTx) Insert(_ context.Context, s *models.Section) (*models.Section, error) {
	t.repo.nextID++
	out := *s
	out.ID = t.repo.nextID
	out.CreatedAt = time.Now()
	out.UpdatedAt = out.CreatedAt
	t.sections[out.ID] = out
	return &out, nil
}

func (t *memSectionTx) UpdateContent(_ context.Context, id int64, title, content *string) (*models.Section, error) {
	s, ok := t.sections[id]
	if !ok {
		return nil, nil
	}
	if title != nil {
		s.Title = *title
	}
	if content != nil {
		s.Content = content
	}
	t.sections[id] = s
	return &s, nil
}

func (t *memSectionTx) SetParentAndPosition(_ context.Context, id int64, parentID *int64, position int) error {
	s, ok := t.sections[id]
	if !ok {
		return errors.New("нет такого раздела")
	}
	s.ParentID = parentID
	s.Position = position
	t.sections[id] = s
	return nil
}

func (t *memSectionTx) ShiftPositions(_ context.Context, courseID int64, parentID *int64, fromPosition int) error {
	for id, s := range t.sections {
		if s.CourseID != courseID || !sameParentPtr(s.ParentID, parentID) {
			continue
		}
		if s.Position >= fromPosition {
			s.Position++
			t.sections[id] = s
		}
	}
	return nil
}

func (t *memSectionTx) ApplyReorder(_ context.Context, items []models.ReorderItem) error {
	for _, it := range items {
		s := t.sections[it.ID]
		s.ParentID = it.ParentID
		s.Position = it.Position
		t.sections[it.ID] = s
	}
	return nil
}

func (t *memSectionTx) DeleteMany(_ context.Context, ids []int64) (int64, error) {
	var n int64
	for _, id := range ids {
		if _, ok := t.sections[id]; ok {
			delete(t.sections, id)
			n++
		}
	}
	return n, nil
}

func (t *memSectionTx) DetachQuizzes(_ context.Context, sectionIDs []int64) (int64, error) {
	var n int64
	for qid, sid := range t.quizzes {
		if sid == nil {
			continue
		}
		for _, id := range sectionIDs {
			if *sid == id {
				t.quizzes[qid] = nil
				n++
				break
			}
		}
	}
	return n, nil
}

func sameParentPtr(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// Мок-репозиторий курсов: только существование и выборка.
type memCourseRepo struct{ ids map[int64]bool }

func newMemCourseRepo(ids ...int64) *memCourseRepo {
	m := &memCourseRepo{ids: make(map[int64]bool)}
	for _, id := range ids {
		m.ids[id] = true
	}
	return m
}

func (m *memCourseRepo) Create(_ context.Context, c *models.Course) (*models.Course, error) {
	return c, nil
}
func (m *memCourseRepo) GetByID(_ context.Context, id int64) (*models.Course, error) {
	if !m.ids[id] {
		return nil, nil
	}
	return &models.Course{ID: id}, nil
}
func (m *memCourseRepo) List(_ context.Context, _ bool) ([]*models.Course, error) { return nil, nil }
func (m *memCourseRepo) Update(_ context.Context, _ *models.Course) error         { return nil }
func (m *memCourseRepo) Delete(_ context.Context, id int64) error                 { delete(m.ids, id); return nil }
func (m *memCourseRepo) Exists(_ context.Context, id int64) (bool, error)        { return m.ids[id], nil }
func (m *memCourseRepo) SlugExists(_ context.Context, _ string) (bool, error)    { return false, nil }

// A(1) -> C(3) -> D(4); B(2) — корневой сосед A. Курс 10.
func seedRepo() *memSectionRepo {
	return newMemSectionRepo(
		models.Section{ID: 1, CourseID: 10, Title: "A", Position: 0},
		models.Section{ID: 2, CourseID: 10, Title: "B", Position: 1},
		models.Section{ID: 3, CourseID: 10, ParentID: ptr(1), Title: "C", Position: 0},
		models.Section{ID: 4, CourseID: 10, ParentID: ptr(3), Title: "D", Position: 0},
	)
}

func newSectionSvc(repo *memSectionRepo) SectionService {
	return NewSectionService(repo, newMemCourseRepo(10))
}

func TestSectionService_CreateAppendsToEnd(t *testing.T) {
	repo := seedRepo()
	svc := newSectionSvc(repo)

	created, err := svc.Create(context.Background(), models.CreateSectionRequest{
		CourseID: 10, Title: "E",
	})
	if err != nil {
		t.Fatalf("создание раздела: %v", err)
	}
	if created.Position != 2 {
		t.Fatalf("новый корневой раздел должен встать в конец (позиция 2), получена %d", created.Position)
	}

	_, err = svc.Create(context.Background(), models.CreateSectionRequest{CourseID: 10, Title: "  "})
	if !errors.Is(err, coursetree.ErrValidation) {
		t.Fatalf("пустой заголовок: ожидался ErrValidation, получено %v", err)
	}
}

func TestSectionService_MoveCycleRejected(t *testing.T) {
	repo := seedRepo()
	svc := newSectionSvc(repo)

	before := repo.snapshot()
	_, err := svc.Move(context.Background(), 1, models.MoveSectionRequest{ParentID: ptr(4)})
	if !errors.Is(err, coursetree.ErrCycle) {
		t.Fatalf("перемещение A под D: ожидался ErrCycle, получено %v", err)
	}
	if !reflect.DeepEqual(before, repo.sections) {
		t.Fatal("отклонённое перемещение изменило состояние")
	}
}

func TestSectionService_MoveAppendsWithoutPosition(t *testing.T) {
	repo := seedRepo()
	svc := newSectionSvc(repo)

	moved, err := svc.Move(context.Background(), 2, models.MoveSectionRequest{ParentID: ptr(1)})
	if err != nil {
		t.Fatalf("перемещение B под A: %v", err)
	}
	if moved.ParentID == nil || *moved.ParentID != 1 {
		t.Fatalf("родителем B должен стать A, получено %v", moved.ParentID)
	}
	if moved.Position != 1 {
		t.Fatalf("B должен встать после C (позиция 1), получена %d", moved.Position)
	}
}

func TestSectionService_MoveCrossCourse(t *testing.T) {
	repo := seedRepo()
	repo.sections[50] = models.Section{ID: 50, CourseID: 20, Title: "Чужой", Position: 0}
	svc := newSectionSvc(repo)

	_, err := svc.Move(context.Background(), 1, models.MoveSectionRequest{ParentID: ptr(50)})
	if !errors.Is(err, coursetree.ErrCrossCourse) {
		t.Fatalf("родитель из другого курса: ожидался ErrCrossCourse, получено %v", err)
	}
}

func TestSectionService_BulkReorderAtomic(t *testing.T) {
	repo := seedRepo()
	svc := newSectionSvc(repo)

	before := repo.snapshot()
	_, err := svc.BulkReorder(context.Background(), 10, []models.ReorderItem{
		{ID: 2, Position: 0},
		{ID: 99, Position: 1}, // битый элемент
	})
	if !errors.Is(err, coursetree.ErrInvalidBatch) {
		t.Fatalf("ожидался ErrInvalidBatch, получено %v", err)
	}
	if !reflect.DeepEqual(before, repo.sections) {
		t.Fatal("отклонённый пакет оставил частичную запись")
	}

	// корректный пакет применяется целиком
	out, err := svc.BulkReorder(context.Background(), 10, []models.ReorderItem{
		{ID: 1, Position: 1},
		{ID: 2, Position: 0},
	})
	if err != nil {
		t.Fatalf("корректный пакет: %v", err)
	}
	if len(out) != 4 {
		t.Fatalf("ожидалось 4 раздела после реордеринга, получено %d", len(out))
	}
	if repo.sections[1].Position != 1 || repo.sections[2].Position != 0 {
		t.Fatal("пакет применился не полностью")
	}
}

func TestSectionService_DeleteCascades(t *testing.T) {
	repo := seedRepo()
	repo.quizzes[100] = ptr(4) // тест привязан к D
	repo.quizzes[101] = ptr(2) // тест привязан к B
	svc := newSectionSvc(repo)

	if err := svc.Delete(context.Background(), 1); err != nil {
		t.Fatalf("удаление A: %v", err)
	}

	for _, id := range []int64{1, 3, 4} {
		if _, ok := repo.sections[id]; ok {
			t.Fatalf("раздел %d должен быть удалён каскадом", id)
		}
	}
	if _, ok := repo.sections[2]; !ok {
		t.Fatal("раздел B не из поддерева и не должен удаляться")
	}
	if repo.quizzes[100] != nil {
		t.Fatal("тест удалённого раздела должен быть отвязан")
	}
	if repo.quizzes[101] == nil {
		t.Fatal("тест чужого раздела не должен трогаться")
	}
}

func TestSectionService_DuplicateShallow(t *testing.T) {
	repo := seedRepo()
	svc := newSectionSvc(repo)

	cp, err := svc.Duplicate(context.Background(), 1, false)
	if err != nil {
		t.Fatalf("дублирование A: %v", err)
	}
	if cp.Title != "A (копия)" {
		t.Fatalf("ожидался заголовок 'A (копия)', получен %q", cp.Title)
	}
	if cp.Position != 1 {
		t.Fatalf("копия должна встать сразу после оригинала (позиция 1), получена %d", cp.Position)
	}
	if repo.sections[2].Position != 2 {
		t.Fatalf("B должен сдвинуться на позицию 2, получена %d", repo.sections[2].Position)
	}

	// неглубокая копия — без детей
	tree := coursetree.Build(listCourse(repo.sections, 10))
	node, _ := tree.Node(cp.ID)
	if len(node.Children) != 0 {
		t.Fatalf("неглубокая копия не должна иметь детей, получено %d", len(node.Children))
	}
}

func TestSectionService_DuplicateDeep(t *testing.T) {
	repo := seedRepo()
	svc := newSectionSvc(repo)

	cp, err := svc.Duplicate(context.Background(), 1, true)
	if err != nil {
		t.Fatalf("глубокое дублирование A: %v", err)
	}

	tree := coursetree.Build(listCourse(repo.sections, 10))
	ids, ok := tree.Subtree(cp.ID)
	if !ok || len(ids) != 3 {
		t.Fatalf("глубокая копия должна воспроизвести поддерево из 3 узлов, получено %v", ids)
	}

	node, _ := tree.Node(cp.ID)
	if len(node.Children) != 1 || node.Children[0].Section.Title != "C" {
		t.Fatal("ребёнок копии должен повторять C")
	}
}

func TestSectionService_NotFound(t *testing.T) {
	svc := newSectionSvc(seedRepo())

	if _, err := svc.Move(context.Background(), 777, models.MoveSectionRequest{}); !errors.Is(err, coursetree.ErrNotFound) {
		t.Fatalf("перемещение несуществующего: ожидался ErrNotFound, получено %v", err)
	}
	if err := svc.Delete(context.Background(), 777); !errors.Is(err, coursetree.ErrNotFound) {
		t.Fatalf("удаление несуществующего: ожидался ErrNotFound, получено %v", err)
	}
	if _, err := svc.Tree(context.Background(), 555); !errors.Is(err, coursetree.ErrNotFound) {
		t.Fatalf("дерево несуществующего курса: ожидался ErrNotFound, получено %v", err)
	}
}
