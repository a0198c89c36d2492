package coursetree

import (
	"testing"

	"eduflow/internal/models"
)

func ptr(v int64) *int64 { return &v }

// A(root,0), B(root,1), C(ребёнок A,0) — сценарий из постановки.
func sampleSections() []models.Section {
	return []models.Section{
		{ID: 1, CourseID: 10, Title: "A", Position: 0},
		{ID: 2, CourseID: 10, Title: "B", Position: 1},
		{ID: 3, CourseID: 10, ParentID: ptr(1), Title: "C", Position: 0},
	}
}

func TestBuild_Flatten(t *testing.T) {
	tree := Build(sampleSections())

	flat := tree.Flatten()
	if len(flat) != 3 {
		t.Fatalf("ожидалось 3 узла, получено %d", len(flat))
	}
	want := []string{"A", "C", "B"}
	for i, n := range flat {
		if n.Section.Title != want[i] {
			t.Fatalf("порядок чтения: позиция %d — ожидался %q, получен %q", i, want[i], n.Section.Title)
		}
	}
}

func TestBuild_EveryIDOnce(t *testing.T) {
	records := []models.Section{
		{ID: 5, CourseID: 1, Position: 3},
		{ID: 6, CourseID: 1, ParentID: ptr(5), Position: 1},
		{ID: 7, CourseID: 1, ParentID: ptr(5), Position: 0},
		{ID: 8, CourseID: 1, ParentID: ptr(7), Position: 0},
		{ID: 9, CourseID: 1, Position: 0},
	}
	tree := Build(records)

	seen := map[int64]int{}
	for _, n := range tree.Flatten() {
		seen[n.Section.ID]++
	}
	if len(seen) != len(records) {
		t.Fatalf("обход потерял узлы: %d из %d", len(seen), len(records))
	}
	for id, cnt := range seen {
		if cnt != 1 {
			t.Fatalf("раздел %d встречается %d раз", id, cnt)
		}
	}
}

func TestBuild_OrphanBecomesRoot(t *testing.T) {
	records := []models.Section{
		{ID: 1, CourseID: 1, Position: 0},
		{ID: 2, CourseID: 1, ParentID: ptr(99), Position: 0}, // родитель вне набора
	}
	tree := Build(records)

	if len(tree.Roots) != 2 {
		t.Fatalf("сирота должна подняться в корень: корней %d", len(tree.Roots))
	}
	orphans := tree.Orphans()
	if len(orphans) != 1 || orphans[0] != 2 {
		t.Fatalf("ожидалась аномалия по разделу 2, получено %v", orphans)
	}
}

func TestBuild_EqualPositionsTieBreakByID(t *testing.T) {
	records := []models.Section{
		{ID: 20, CourseID: 1, Position: 5},
		{ID: 10, CourseID: 1, Position: 5},
		{ID: 30, CourseID: 1, Position: 5},
	}
	// две сборки по одному входу обязаны дать один и тот же порядок
	for i := 0; i < 2; i++ {
		tree := Build(records)
		flat := tree.Flatten()
		if flat[0].Section.ID != 10 || flat[1].Section.ID != 20 || flat[2].Section.ID != 30 {
			t.Fatalf("при равных позициях порядок должен идти по id: %d, %d, %d",
				flat[0].Section.ID, flat[1].Section.ID, flat[2].Section.ID)
		}
	}
}

func TestBuild_DoesNotMutateInput(t *testing.T) {
	records := sampleSections()
	before := make([]models.Section, len(records))
	copy(before, records)

	Build(records)

	for i := range records {
		if records[i] != before[i] {
			t.Fatalf("сборка изменила входную запись %d", i)
		}
	}
}

func TestSubtree(t *testing.T) {
	records := []models.Section{
		{ID: 1, CourseID: 1, Position: 0},
		{ID: 2, CourseID: 1, ParentID: ptr(1), Position: 0},
		{ID: 3, CourseID: 1, ParentID: ptr(2), Position: 0},
		{ID: 4, CourseID: 1, Position: 1},
	}
	tree := Build(records)

	ids, ok := tree.Subtree(1)
	if !ok {
		t.Fatal("поддерево существующего раздела не найдено")
	}
	if len(ids) != 3 || ids[0] != 1 || ids[1] != 2 || ids[2] != 3 {
		t.Fatalf("ожидалось поддерево [1 2 3], получено %v", ids)
	}

	if _, ok := tree.Subtree(99); ok {
		t.Fatal("поддерево несуществующего раздела должно отсутствовать")
	}
}
