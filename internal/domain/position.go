package domain

import "fmt"

// Position (module index, lesson index) pair inside a course
type Position struct {
	Module int `json:"module"`
	Lesson int `json:"lesson"`
}

// Before lexicographic comparison, module first
func (p Position) Before(o Position) bool {
	if p.Module != o.Module {
		return p.Module < o.Module
	}
	return p.Lesson < o.Lesson
}

func (p Position) String() string {
	return fmt.Sprintf("(%d,%d)", p.Module, p.Lesson)
}
