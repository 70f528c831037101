// Package todo implements the personal to-do list.
package todo

import (
	"errors"
	"fmt"
	"strings"

	"github.com/verte-zerg/schooldash/internal/model"
)

// ErrIndexOutOfRange is returned by Toggle and Remove for an index outside the list.
var ErrIndexOutOfRange = errors.New("todo index out of range")

// List is an ordered to-do list. Order is insertion order.
type List []model.Todo

// Add appends a task. Blank text is ignored and reported as false.
func (l *List) Add(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	*l = append(*l, model.Todo{Text: text})
	return true
}

// Toggle flips the done state of the task at i.
func (l List) Toggle(i int) error {
	if err := l.check(i); err != nil {
		return err
	}
	l[i].Done = !l[i].Done
	return nil
}

// Remove deletes the task at i. Later tasks shift down by one.
func (l *List) Remove(i int) error {
	if err := l.check(i); err != nil {
		return err
	}
	*l = append((*l)[:i:i], (*l)[i+1:]...)
	return nil
}

// Progress returns the number of finished tasks and the total.
func (l List) Progress() (done, total int) {
	for _, item := range l {
		if item.Done {
			done++
		}
	}
	return done, len(l)
}

// Percent returns the finished share in [0, 1]; an empty list is 0.
func (l List) Percent() float64 {
	done, total := l.Progress()
	if total == 0 {
		return 0
	}
	return float64(done) / float64(total)
}

func (l List) check(i int) error {
	if i < 0 || i >= len(l) {
		return fmt.Errorf("%w: %d (have %d)", ErrIndexOutOfRange, i, len(l))
	}
	return nil
}
