package core

import (
	"context"
	"fmt"

	"voltschool/pkg/domain"
)

const studentCodeLength = 6

// StudentStore holds enrolled students. Ids run S1001, S1002, ...
type StudentStore struct {
	*Collection[domain.Student]
	seq *sequence
}

// NewStudentStore constructs an uninitialised student store.
func NewStudentStore(deps StoreDeps) *StudentStore {
	s := &StudentStore{seq: newSequence("S", 1000)}
	s.Collection = newCollection(domain.CollectionStudents, deps, s.observe)
	return s
}

func (s *StudentStore) observe(items []domain.Student) {
	for _, st := range items {
		s.seq.observe(st.ID)
	}
}

// Add assigns an id and fills in missing student and guardian codes, then
// appends the student.
func (s *StudentStore) Add(ctx context.Context, student domain.Student) (domain.Student, error) {
	if err := student.Validate(); err != nil {
		return domain.Student{}, err
	}
	st := student.Clone()
	if st.ID == "" {
		st.ID, _ = s.seq.next()
	} else {
		s.seq.observe(st.ID)
	}
	var err error
	if st.StudentCode == "" {
		if st.StudentCode, err = randomCode(studentCodeLength); err != nil {
			return domain.Student{}, err
		}
	}
	if st.Guardian.Code == "" {
		if st.Guardian.Code, err = randomCode(studentCodeLength); err != nil {
			return domain.Student{}, err
		}
	}
	if err := s.Insert(ctx, st); err != nil {
		return st, err
	}
	return st, nil
}

// Update merges patch into the student with id.
func (s *StudentStore) Update(ctx context.Context, id string, patch domain.StudentPatch) (domain.Student, error) {
	return s.Modify(ctx, id, func(st *domain.Student) error {
		patch.Apply(st)
		if err := st.Validate(); err != nil {
			return fmt.Errorf("update student: %w", err)
		}
		return nil
	})
}

// ByBus returns the students assigned to busID.
func (s *StudentStore) ByBus(busID string) []domain.Student {
	return StudentsByBus(s.List(), busID)
}

// BySchool returns the students enrolled at school.
func (s *StudentStore) BySchool(school domain.School) []domain.Student {
	return StudentsBySchool(s.List(), school)
}
