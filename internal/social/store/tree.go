package store

// Node is a comment with its nested replies.
type Node struct {
	Comment
	Replies []*Node `json:"replies"`
}

// BuildForest nests a single page of comments into parent→child trees.
//
// The parent lookup is restricted to the page itself: a reply whose
// parent lives on another page is promoted to a root so the fragment
// still renders. Input order is preserved for roots and for the
// children of each parent.
func BuildForest(comments []Comment) []*Node {
	index := make(map[int64]*Node, len(comments))
	nodes := make([]*Node, len(comments))
	for i := range comments {
		n := &Node{Comment: comments[i], Replies: []*Node{}}
		index[n.ID] = n
		nodes[i] = n
	}

	roots := make([]*Node, 0, len(nodes))
	for _, n := range nodes {
		if n.ParentID != nil {
			if parent, ok := index[*n.ParentID]; ok && parent != n {
				parent.Replies = append(parent.Replies, n)
				continue
			}
		}
		roots = append(roots, n)
	}
	return roots
}
