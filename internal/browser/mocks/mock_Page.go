// Package mocks provides test doubles for the browser package.
package mocks

import (
	"context"
	"time"

	mock "github.com/stretchr/testify/mock"

	browser "github.com/sells-group/bursa-cli/internal/browser"
)

// MockPage is a mock type for the Page interface.
type MockPage struct {
	mock.Mock
}

// Goto provides a mock function with given fields: ctx, url, timeout
func (_m *MockPage) Goto(ctx context.Context, url string, timeout time.Duration) error {
	ret := _m.Called(ctx, url, timeout)

	if len(ret) == 0 {
		panic("no return value specified for Goto")
	}

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, string, time.Duration) error); ok {
		r0 = rf(ctx, url, timeout)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// Click provides a mock function with given fields: ctx, l, timeout
func (_m *MockPage) Click(ctx context.Context, l browser.Locator, timeout time.Duration) error {
	ret := _m.Called(ctx, l, timeout)

	if len(ret) == 0 {
		panic("no return value specified for Click")
	}

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, browser.Locator, time.Duration) error); ok {
		r0 = rf(ctx, l, timeout)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// WaitFor provides a mock function with given fields: ctx, l, timeout
func (_m *MockPage) WaitFor(ctx context.Context, l browser.Locator, timeout time.Duration) error {
	ret := _m.Called(ctx, l, timeout)

	if len(ret) == 0 {
		panic("no return value specified for WaitFor")
	}

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, browser.Locator, time.Duration) error); ok {
		r0 = rf(ctx, l, timeout)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// Count provides a mock function with given fields: ctx, l
func (_m *MockPage) Count(ctx context.Context, l browser.Locator) (int, error) {
	ret := _m.Called(ctx, l)

	if len(ret) == 0 {
		panic("no return value specified for Count")
	}

	var r0 int
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, browser.Locator) (int, error)); ok {
		return rf(ctx, l)
	}
	if rf, ok := ret.Get(0).(func(context.Context, browser.Locator) int); ok {
		r0 = rf(ctx, l)
	} else {
		r0 = ret.Get(0).(int)
	}

	if rf, ok := ret.Get(1).(func(context.Context, browser.Locator) error); ok {
		r1 = rf(ctx, l)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// Enabled provides a mock function with given fields: ctx, l
func (_m *MockPage) Enabled(ctx context.Context, l browser.Locator) (bool, error) {
	ret := _m.Called(ctx, l)

	if len(ret) == 0 {
		panic("no return value specified for Enabled")
	}

	var r0 bool
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, browser.Locator) (bool, error)); ok {
		return rf(ctx, l)
	}
	if rf, ok := ret.Get(0).(func(context.Context, browser.Locator) bool); ok {
		r0 = rf(ctx, l)
	} else {
		r0 = ret.Get(0).(bool)
	}

	if rf, ok := ret.Get(1).(func(context.Context, browser.Locator) error); ok {
		r1 = rf(ctx, l)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// Fill provides a mock function with given fields: ctx, l, value, timeout
func (_m *MockPage) Fill(ctx context.Context, l browser.Locator, value string, timeout time.Duration) error {
	ret := _m.Called(ctx, l, value, timeout)

	if len(ret) == 0 {
		panic("no return value specified for Fill")
	}

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, browser.Locator, string, time.Duration) error); ok {
		r0 = rf(ctx, l, value, timeout)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// SelectOption provides a mock function with given fields: ctx, l, value, timeout
func (_m *MockPage) SelectOption(ctx context.Context, l browser.Locator, value string, timeout time.Duration) error {
	ret := _m.Called(ctx, l, value, timeout)

	if len(ret) == 0 {
		panic("no return value specified for SelectOption")
	}

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, browser.Locator, string, time.Duration) error); ok {
		r0 = rf(ctx, l, value, timeout)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// RowTexts provides a mock function with given fields: ctx, rows, cellCSS
func (_m *MockPage) RowTexts(ctx context.Context, rows browser.Locator, cellCSS string) ([]string, error) {
	ret := _m.Called(ctx, rows, cellCSS)

	if len(ret) == 0 {
		panic("no return value specified for RowTexts")
	}

	var r0 []string
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, browser.Locator, string) ([]string, error)); ok {
		return rf(ctx, rows, cellCSS)
	}
	if rf, ok := ret.Get(0).(func(context.Context, browser.Locator, string) []string); ok {
		r0 = rf(ctx, rows, cellCSS)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).([]string)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, browser.Locator, string) error); ok {
		r1 = rf(ctx, rows, cellCSS)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// HTML provides a mock function with given fields: ctx
func (_m *MockPage) HTML(ctx context.Context) (string, error) {
	ret := _m.Called(ctx)

	if len(ret) == 0 {
		panic("no return value specified for HTML")
	}

	var r0 string
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context) (string, error)); ok {
		return rf(ctx)
	}
	if rf, ok := ret.Get(0).(func(context.Context) string); ok {
		r0 = rf(ctx)
	} else {
		r0 = ret.Get(0).(string)
	}

	if rf, ok := ret.Get(1).(func(context.Context) error); ok {
		r1 = rf(ctx)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// Close provides a mock function with no fields
func (_m *MockPage) Close() error {
	ret := _m.Called()

	if len(ret) == 0 {
		panic("no return value specified for Close")
	}

	var r0 error
	if rf, ok := ret.Get(0).(func() error); ok {
		r0 = rf()
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// NewMockPage creates a new instance of MockPage.
func NewMockPage(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockPage {
	mock := &MockPage{}
	mock.Test(t)

	t.Cleanup(func() { mock.AssertExpectations(t) })

	return mock
}
