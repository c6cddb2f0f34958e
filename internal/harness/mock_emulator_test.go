package harness

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockEmulator struct {
	mock.Mock
}

func (m *MockEmulator) InitializeApp(ctx context.Context, opts AppOptions) (App, error) {
	args := m.Called(ctx, opts)
	if app := args.Get(0); app != nil {
		return app.(App), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockEmulator) LoadRules(ctx context.Context, projectID, rules string) error {
	return m.Called(ctx, projectID, rules).Error(0)
}

func (m *MockEmulator) ClearData(ctx context.Context, projectID string) error {
	return m.Called(ctx, projectID).Error(0)
}

func (m *MockEmulator) Apps() []App {
	return m.Called().Get(0).([]App)
}

type MockApp struct {
	mock.Mock
	name string
	opts AppOptions
}

func newMockApp(name string, opts AppOptions) *MockApp {
	return &MockApp{name: name, opts: opts}
}

func (m *MockApp) Name() string        { return m.name }
func (m *MockApp) Options() AppOptions { return m.opts }

func (m *MockApp) GetDocument(ctx context.Context, path string) (*Snapshot, error) {
	args := m.Called(ctx, path)
	if snap := args.Get(0); snap != nil {
		return snap.(*Snapshot), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockApp) SetDocument(ctx context.Context, path string, data map[string]interface{}) error {
	return m.Called(ctx, path, data).Error(0)
}

func (m *MockApp) UpdateDocument(ctx context.Context, path string, data map[string]interface{}) error {
	return m.Called(ctx, path, data).Error(0)
}

func (m *MockApp) DeleteDocument(ctx context.Context, path string) error {
	return m.Called(ctx, path).Error(0)
}

func (m *MockApp) Delete(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}
