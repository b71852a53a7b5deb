package search

// Navigator tracks the current match among total matches. Index is 0-based;
// Position is the 1-based value shown as "n/total".
type Navigator struct {
	index int
	total int
}

// Reset starts over at the first of total matches.
func (n *Navigator) Reset(total int) {
	if total < 0 {
		total = 0
	}
	n.total = total
	n.index = 0
}

// Next moves forward, wrapping from the last match to the first.
func (n *Navigator) Next() int {
	if n.total == 0 {
		return n.index
	}
	n.index = (n.index + 1) % n.total
	return n.index
}

// Prev moves backward, wrapping from the first match to the last.
func (n *Navigator) Prev() int {
	if n.total == 0 {
		return n.index
	}
	if n.index == 0 {
		n.index = n.total - 1
	} else {
		n.index--
	}
	return n.index
}

func (n *Navigator) Index() int { return n.index }
func (n *Navigator) Total() int { return n.total }

func (n *Navigator) Position() int {
	if n.total == 0 {
		return 0
	}
	return n.index + 1
}
