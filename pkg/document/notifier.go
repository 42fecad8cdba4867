package document

// Notifier delivers values to its observers synchronously, in registration
// order. The zero value is ready to use.
type Notifier[T any] struct {
	next int
	subs []subscription[T]
}

type subscription[T any] struct {
	id int
	fn func(T)
}

// Subscribe registers fn and returns a function that removes it.
func (n *Notifier[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	n.next++
	id := n.next
	n.subs = append(n.subs, subscription[T]{id: id, fn: fn})
	return func() {
		for i, s := range n.subs {
			if s.id == id {
				n.subs = append(n.subs[:i:i], n.subs[i+1:]...)
				return
			}
		}
	}
}

// Notify calls every observer registered at the time of the call.
func (n *Notifier[T]) Notify(v T) {
	subs := n.subs
	for _, s := range subs {
		s.fn(v)
	}
}

// Len returns the number of observers.
func (n *Notifier[T]) Len() int { return len(n.subs) }
