package cache

// lruNode links one cache key into the recency list. Nodes carry their
// key so eviction can delete the owning map entry in O(1).
type lruNode[K comparable] struct {
	key  K
	prev *lruNode[K]
	next *lruNode[K]
}

// lruList orders keys by recency: head is the most recently touched
// key, tail the next eviction candidate. The owning Cache serializes
// all access.
type lruList[K comparable] struct {
	head *lruNode[K]
	tail *lruNode[K]
	len  int
}

// Len returns the number of linked nodes.
func (l *lruList[K]) Len() int { return l.len }

// PushFront links a fresh node for key at the head and returns it.
func (l *lruList[K]) PushFront(key K) *lruNode[K] {
	node := &lruNode[K]{key: key}
	l.attach(node)
	return node
}

// MoveToFront re-links an existing node at the head.
func (l *lruList[K]) MoveToFront(node *lruNode[K]) {
	if node == nil || node == l.head {
		return
	}
	l.unlink(node)
	l.attach(node)
}

// Remove unlinks a node.
func (l *lruList[K]) Remove(node *lruNode[K]) {
	if node != nil {
		l.unlink(node)
	}
}

// RemoveOldest unlinks the least recently used node and returns its
// key; false when the list is empty.
func (l *lruList[K]) RemoveOldest() (K, bool) {
	if l.tail == nil {
		var zero K
		return zero, false
	}
	node := l.tail
	l.unlink(node)
	return node.key, true
}

// Clear drops every node.
func (l *lruList[K]) Clear() {
	l.head = nil
	l.tail = nil
	l.len = 0
}

// attach links a detached node at the head.
func (l *lruList[K]) attach(node *lruNode[K]) {
	node.next = l.head
	if l.head != nil {
		l.head.prev = node
	}
	l.head = node
	if l.tail == nil {
		l.tail = node
	}
	l.len++
}

// unlink detaches a node, clearing its pointers.
func (l *lruList[K]) unlink(node *lruNode[K]) {
	if node.prev != nil {
		node.prev.next = node.next
	} else {
		l.head = node.next
	}
	if node.next != nil {
		node.next.prev = node.prev
	} else {
		l.tail = node.prev
	}
	node.prev = nil
	node.next = nil
	l.len--
}
