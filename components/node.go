package components

// Node is a resource pool. A source starts full and is drained by Take;
// a storage starts empty and is filled by Put. Amount stays in [0, Capacity].
type Node struct {
	Role     Role
	Amount   int
	Capacity int
}

// NewSource returns a full source holding amount units.
func NewSource(amount int) Node {
	if amount < 0 {
		amount = 0
	}
	return Node{Role: RoleSource, Amount: amount, Capacity: amount}
}

// NewStorage returns an empty storage that fills at capacity units.
func NewStorage(capacity int) Node {
	if capacity < 0 {
		capacity = 0
	}
	return Node{Role: RoleStorage, Amount: 0, Capacity: capacity}
}

// Take removes one unit. It reports false, leaving the node unchanged,
// when the node is already empty.
func (n *Node) Take() bool {
	if n.Amount <= 0 {
		n.Amount = 0
		return false
	}
	n.Amount--
	return true
}

// Put adds one unit. It reports false, leaving the node unchanged,
// when the node is already full.
func (n *Node) Put() bool {
	if n.Amount >= n.Capacity {
		n.Amount = n.Capacity
		return false
	}
	n.Amount++
	return true
}

// IsEmpty reports whether a source has nothing left to take.
func (n *Node) IsEmpty() bool { return n.Amount <= 0 }

// IsFull reports whether a storage cannot accept more.
func (n *Node) IsFull() bool { return n.Amount >= n.Capacity }

// Exhausted reports whether the node is due for renewal:
// an empty source or a full storage.
func (n *Node) Exhausted() bool {
	if n.Role == RoleSource {
		return n.IsEmpty()
	}
	return n.IsFull()
}

// FillRatio returns Amount/Capacity in [0,1].
func (n *Node) FillRatio() float64 {
	if n.Capacity <= 0 {
		return 0
	}
	return float64(n.Amount) / float64(n.Capacity)
}
