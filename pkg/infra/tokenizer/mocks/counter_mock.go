package mocks

import "github.com/stretchr/testify/mock"

type Counter struct {
	mock.Mock
}

func (m *Counter) Count(text string) int {
	args := m.Called(text)
	return args.Int(0)
}
