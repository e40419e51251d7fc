package notification

import (
	"context"
	"time"
)

// Mocks for the dispatcher's collaborators. A nil func field returns zero
// values so tests only wire what they assert on.

type MockStore struct {
	ListActiveSubscriptionsFunc func(ctx context.Context) ([]Subscription, error)
	GetPersonaIDFunc            func(ctx context.Context, userID string) (string, error)
	ListPendingTasksFunc        func(ctx context.Context, userID string, limit int) ([]Task, error)
	RecentHistoryFunc           func(ctx context.Context, userID string, limit int) ([]string, error)
	AppendHistoryFunc           func(ctx context.Context, rec *HistoryRecord) error
	TouchSubscriptionFunc       func(ctx context.Context, id string, at time.Time) error
	DeactivateSubscriptionFunc  func(ctx context.Context, id string) error
}

func (m *MockStore) ListActiveSubscriptions(ctx context.Context) ([]Subscription, error) {
	if m.ListActiveSubscriptionsFunc == nil {
		return nil, nil
	}
	return m.ListActiveSubscriptionsFunc(ctx)
}

func (m *MockStore) GetPersonaID(ctx context.Context, userID string) (string, error) {
	if m.GetPersonaIDFunc == nil {
		return "", nil
	}
	return m.GetPersonaIDFunc(ctx, userID)
}

func (m *MockStore) ListPendingTasks(ctx context.Context, userID string, limit int) ([]Task, error) {
	if m.ListPendingTasksFunc == nil {
		return nil, nil
	}
	return m.ListPendingTasksFunc(ctx, userID, limit)
}

func (m *MockStore) RecentHistory(ctx context.Context, userID string, limit int) ([]string, error) {
	if m.RecentHistoryFunc == nil {
		return nil, nil
	}
	return m.RecentHistoryFunc(ctx, userID, limit)
}

func (m *MockStore) AppendHistory(ctx context.Context, rec *HistoryRecord) error {
	if m.AppendHistoryFunc == nil {
		return nil
	}
	return m.AppendHistoryFunc(ctx, rec)
}

func (m *MockStore) TouchSubscription(ctx context.Context, id string, at time.Time) error {
	if m.TouchSubscriptionFunc == nil {
		return nil
	}
	return m.TouchSubscriptionFunc(ctx, id, at)
}

func (m *MockStore) DeactivateSubscription(ctx context.Context, id string) error {
	if m.DeactivateSubscriptionFunc == nil {
		return nil
	}
	return m.DeactivateSubscriptionFunc(ctx, id)
}

type MockCompleter struct {
	AvailableFunc func() bool
	CompleteFunc  func(ctx context.Context, req CompletionRequest) (string, error)
}

func (m *MockCompleter) Available() bool {
	if m.AvailableFunc == nil {
		return true
	}
	return m.AvailableFunc()
}

func (m *MockCompleter) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	if m.CompleteFunc == nil {
		return "", nil
	}
	return m.CompleteFunc(ctx, req)
}

type MockTransport struct {
	SendFunc func(ctx context.Context, target PushTarget, payload []byte, keys VAPIDKeys) error
}

func (m *MockTransport) Send(ctx context.Context, target PushTarget, payload []byte, keys VAPIDKeys) error {
	if m.SendFunc == nil {
		return nil
	}
	return m.SendFunc(ctx, target, payload, keys)
}

type MockPublisher struct {
	PublishFunc func(ctx context.Context, key string, value []byte) error
}

func (m *MockPublisher) Publish(ctx context.Context, key string, value []byte) error {
	if m.PublishFunc == nil {
		return nil
	}
	return m.PublishFunc(ctx, key, value)
}

type MockAlerter struct {
	NotifyFunc func(ctx context.Context, summary *Summary, runErr error) error
}

func (m *MockAlerter) Notify(ctx context.Context, summary *Summary, runErr error) error {
	if m.NotifyFunc == nil {
		return nil
	}
	return m.NotifyFunc(ctx, summary, runErr)
}

type MockLocker struct {
	AcquireFunc func(ctx context.Context, token string) error
	ReleaseFunc func(ctx context.Context, token string) error
}

func (m *MockLocker) Acquire(ctx context.Context, token string) error {
	if m.AcquireFunc == nil {
		return nil
	}
	return m.AcquireFunc(ctx, token)
}

func (m *MockLocker) Release(ctx context.Context, token string) error {
	if m.ReleaseFunc == nil {
		return nil
	}
	return m.ReleaseFunc(ctx, token)
}

type MockEmailSender struct {
	SendEmailFunc func(ctx context.Context, to []string, subject, htmlBody string) error
}

func (m *MockEmailSender) SendEmail(ctx context.Context, to []string, subject, htmlBody string) error {
	if m.SendEmailFunc == nil {
		return nil
	}
	return m.SendEmailFunc(ctx, to, subject, htmlBody)
}
