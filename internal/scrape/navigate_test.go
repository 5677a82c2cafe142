package scrape

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/bursa-cli/internal/browser"
	"github.com/sells-group/bursa-cli/internal/browser/mocks"
	"github.com/sells-group/bursa-cli/internal/config"
	"github.com/sells-group/bursa-cli/internal/model"
)

var errTimeout = errors.New("timeout 3000ms exceeded")

func testBrowserConfig() config.BrowserConfig {
	return config.BrowserConfig{
		NavTimeoutSecs:    60,
		ActionTimeoutMs:   3000,
		RecoveryTimeoutMs: 5000,
		NavAttempts:       2,
		MaxPages:          50,
	}
}

func TestReach_FirstAttempt(t *testing.T) {
	p := mocks.NewMockPage(t)
	p.On("Click", mock.Anything, mock.Anything, 3*time.Second).Return(nil)
	p.On("WaitFor", mock.Anything, tableBody, tableWait).Return(nil).Once()

	n := NewNavigator(testBrowserConfig())
	require.NoError(t, n.Reach(context.Background(), p, model.StatementBalance))

	p.AssertNumberOfCalls(t, "Click", 8)
	p.AssertCalled(t, "Click", mock.Anything, browser.ByRole("button", "Balance Sheet"), 3*time.Second)
	p.AssertNotCalled(t, "Click", mock.Anything, btnProfile, mock.Anything)
}

func TestReach_RecoversThroughProfile(t *testing.T) {
	p := mocks.NewMockPage(t)
	p.On("Click", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	p.On("WaitFor", mock.Anything, tableBody, tableWait).Return(errTimeout).Once()
	p.On("WaitFor", mock.Anything, tableBody, tableWait).Return(nil).Once()

	n := NewNavigator(testBrowserConfig())
	require.NoError(t, n.Reach(context.Background(), p, model.StatementCashFlow))

	// Two full walks plus Profile and Financials in between.
	p.AssertNumberOfCalls(t, "Click", 18)
	p.AssertCalled(t, "Click", mock.Anything, btnProfile, 3*time.Second)
	p.AssertCalled(t, "Click", mock.Anything, btnFinancials, 5*time.Second)
	p.AssertCalled(t, "Click", mock.Anything, browser.ByRole("button", "Cash Flow"), 3*time.Second)
}

func TestReach_RecoveryFailureAborts(t *testing.T) {
	p := mocks.NewMockPage(t)
	p.On("Click", mock.Anything, btnStatements, mock.Anything).Return(errTimeout)
	p.On("Click", mock.Anything, btnProfile, mock.Anything).Return(errTimeout).Once()

	n := NewNavigator(testBrowserConfig())
	err := n.Reach(context.Background(), p, model.StatementIncome)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "recover")
	p.AssertNumberOfCalls(t, "Click", 2)
	p.AssertNotCalled(t, "WaitFor", mock.Anything, mock.Anything, mock.Anything)
}

func TestReach_ExhaustsAttempts(t *testing.T) {
	p := mocks.NewMockPage(t)
	p.On("Click", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	p.On("WaitFor", mock.Anything, tableBody, tableWait).Return(errTimeout)

	n := NewNavigator(testBrowserConfig())
	err := n.Reach(context.Background(), p, model.StatementBalance)
	require.Error(t, err)
	assert.ErrorIs(t, err, errTimeout)
	assert.Contains(t, err.Error(), "after 2 attempts")
	p.AssertNumberOfCalls(t, "WaitFor", 2)
}

func TestReach_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := mocks.NewMockPage(t)
	p.On("Click", mock.Anything, btnStatements, mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return(context.Canceled).Once()

	n := NewNavigator(testBrowserConfig())
	err := n.Reach(ctx, p, model.StatementBalance)
	assert.ErrorIs(t, err, context.Canceled)
	p.AssertNotCalled(t, "Click", mock.Anything, btnProfile, mock.Anything)
}

func TestEnter_CloseIsBestEffort(t *testing.T) {
	p := mocks.NewMockPage(t)
	p.On("Click", mock.Anything, btnFinancials, mock.Anything).Return(nil).Once()
	p.On("Click", mock.Anything, btnClose, mock.Anything).Return(errTimeout).Once()

	n := NewNavigator(testBrowserConfig())
	assert.NoError(t, n.Enter(context.Background(), p))
}

func TestEnter_FinancialsRequired(t *testing.T) {
	p := mocks.NewMockPage(t)
	p.On("Click", mock.Anything, btnFinancials, mock.Anything).Return(errTimeout).Once()

	n := NewNavigator(testBrowserConfig())
	assert.ErrorIs(t, n.Enter(context.Background(), p), errTimeout)
}
