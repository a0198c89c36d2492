package coursetree

// Crumb — звено хлебных крошек: путь от корня курса до раздела.
type Crumb struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// Flatten — детерминированный линейный порядок чтения курса: обход в глубину,
// узел раньше своих детей, дети в отсортированном порядке. Каждый раздел
// встречается ровно один раз.
func (t *Tree) Flatten() []*Node {
	out := make([]*Node, 0, len(t.index))
	var walk func(n *Node)
	walk = func(n *Node) {
		out = append(out, n)
		for _, c := range n.Children {
			walk(c)
		}
	}
	for _, r := range t.Roots {
		walk(r)
	}
	return out
}

// Breadcrumb возвращает путь корень→раздел. Для сироты, поднятого в корень
// при сборке, путь начинается с него самого.
func (t *Tree) Breadcrumb(id int64) ([]Crumb, error) {
	node, ok := t.index[id]
	if !ok {
		return nil, ErrNotFound
	}

	var rev []Crumb
	for {
		rev = append(rev, Crumb{ID: node.Section.ID, Title: node.Section.Title})
		pid, ok := t.parents[node.Section.ID]
		if !ok {
			break
		}
		node = t.index[pid]
	}

	path := make([]Crumb, len(rev))
	for i, c := range rev {
		path[len(rev)-1-i] = c
	}
	return path, nil
}

// Next возвращает раздел, следующий за id в линейном порядке чтения.
// nil без ошибки — id стоит последним; это легитимное терминальное состояние.
func (t *Tree) Next(id int64) (*Node, error) {
	flat := t.Flatten()
	for i, n := range flat {
		if n.Section.ID == id {
			if i+1 < len(flat) {
				return flat[i+1], nil
			}
			return nil, nil
		}
	}
	return nil, ErrNotFound
}

// Previous — раздел перед id в линейном порядке чтения; nil для первого.
func (t *Tree) Previous(id int64) (*Node, error) {
	flat := t.Flatten()
	for i, n := range flat {
		if n.Section.ID == id {
			if i > 0 {
				return flat[i-1], nil
			}
			return nil, nil
		}
	}
	return nil, ErrNotFound
}
