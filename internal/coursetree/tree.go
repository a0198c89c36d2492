// Package coursetree собирает плоский список разделов курса в дерево и
// реализует над ним навигацию и валидацию структурных операций.
// Все функции чистые: входной срез не модифицируется, узлы дерева —
// новые значения, пересобираемые на каждый вызов.
package coursetree

import (
	"sort"

	"eduflow/internal/models"
)

// Node — узел собранного дерева. Children всегда не-nil (пустой срез у листа),
// отсортирован по (Position, ID).
type Node struct {
	Section  models.Section `json:"section"`
	Children []*Node        `json:"children"`
}

// Tree — лес корневых узлов одного курса плюс индексы для навигации.
type Tree struct {
	Roots []*Node

	index   map[int64]*Node
	parents map[int64]int64 // id ребёнка -> id родителя (только реально прикреплённые)
	orphans []int64
}

// Build собирает дерево из плоского набора записей одного курса.
// Запись с родителем вне набора (частичная выборка, битая ссылка) не роняет
// сборку: она становится корнем, а её id попадает в Orphans() — аномалию
// логирует вызывающая сторона. Равные Position разрешаются по ID, то есть
// по порядку создания: результат детерминирован при одинаковом входе.
func Build(records []models.Section) *Tree {
	t := &Tree{
		index:   make(map[int64]*Node, len(records)),
		parents: make(map[int64]int64),
	}

	for _, rec := range records {
		t.index[rec.ID] = &Node{Section: rec, Children: []*Node{}}
	}

	for _, rec := range records {
		node := t.index[rec.ID]
		if rec.ParentID == nil {
			t.Roots = append(t.Roots, node)
			continue
		}
		parent, ok := t.index[*rec.ParentID]
		if !ok {
			t.orphans = append(t.orphans, rec.ID)
			t.Roots = append(t.Roots, node)
			continue
		}
		parent.Children = append(parent.Children, node)
		t.parents[rec.ID] = *rec.ParentID
	}

	sortLevel(t.Roots)
	for _, n := range t.index {
		sortLevel(n.Children)
	}
	return t
}

func sortLevel(nodes []*Node) {
	sort.SliceStable(nodes, func(i, j int) bool {
		a, b := nodes[i].Section, nodes[j].Section
		if a.Position != b.Position {
			return a.Position < b.Position
		}
		return a.ID < b.ID
	})
}

// Node возвращает узел по id раздела.
func (t *Tree) Node(id int64) (*Node, bool) {
	n, ok := t.index[id]
	return n, ok
}

// Size — количество разделов в дереве.
func (t *Tree) Size() int { return len(t.index) }

// Orphans — id разделов, чей объявленный родитель отсутствовал в наборе.
func (t *Tree) Orphans() []int64 { return t.orphans }

// Subtree возвращает id всех разделов поддерева с корнем id (включая сам id),
// в порядке обхода сверху вниз. Используется каскадным удалением и глубоким
// дублированием.
func (t *Tree) Subtree(id int64) ([]int64, bool) {
	root, ok := t.index[id]
	if !ok {
		return nil, false
	}
	var ids []int64
	var walk func(n *Node)
	walk = func(n *Node) {
		ids = append(ids, n.Section.ID)
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(root)
	return ids, true
}
