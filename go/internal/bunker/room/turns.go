package room

import "github.com/google/uuid"

// turnQueue is the fixed order of turn holders for one turn phase. cursor is
// -1 before the first advance and len(ids) once exhausted.
type turnQueue struct {
	ids    []uuid.UUID
	cursor int
}

func newTurnQueue(ids []uuid.UUID) turnQueue {
	return turnQueue{ids: ids, cursor: -1}
}

// next moves the cursor to the following entry that is still active.
func (q *turnQueue) next(active func(uuid.UUID) bool) (uuid.UUID, bool) {
	for {
		q.cursor++
		if q.cursor >= len(q.ids) {
			q.cursor = len(q.ids)
			return uuid.Nil, false
		}
		if id := q.ids[q.cursor]; active(id) {
			return id, true
		}
	}
}

// current returns the turn holder, if any.
func (q *turnQueue) current() (uuid.UUID, bool) {
	if q.cursor < 0 || q.cursor >= len(q.ids) {
		return uuid.Nil, false
	}
	return q.ids[q.cursor], true
}

func (q *turnQueue) holds(id uuid.UUID) bool {
	cur, ok := q.current()
	return ok && cur == id
}

func (q *turnQueue) clear() {
	*q = turnQueue{}
}
