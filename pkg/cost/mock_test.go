package cost

import (
	"reflect"

	"go.uber.org/mock/gomock"
)

// MockcostStore is a hand-written gomock-style mock of the costStore
// collaborator, following the shape `mockgen` would generate for it.
type MockcostStore struct {
	ctrl     *gomock.Controller
	recorder *MockcostStoreMockRecorder
}

type MockcostStoreMockRecorder struct {
	mock *MockcostStore
}

func NewMockcostStore(ctrl *gomock.Controller) *MockcostStore {
	m := &MockcostStore{ctrl: ctrl}
	m.recorder = &MockcostStoreMockRecorder{m}
	return m
}

func (m *MockcostStore) EXPECT() *MockcostStoreMockRecorder {
	return m.recorder
}

func (m *MockcostStore) SaveAPICall(call APICall) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "SaveAPICall", call)
	err, _ := ret[0].(error)
	return err
}

func (mr *MockcostStoreMockRecorder) SaveAPICall(call any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "SaveAPICall", reflect.TypeOf((*MockcostStore)(nil).SaveAPICall), call)
}

func (m *MockcostStore) GetAgentCost(agentID string) (float64, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetAgentCost", agentID)
	cost, _ := ret[0].(float64)
	err, _ := ret[1].(error)
	return cost, err
}

func (mr *MockcostStoreMockRecorder) GetAgentCost(agentID any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetAgentCost", reflect.TypeOf((*MockcostStore)(nil).GetAgentCost), agentID)
}

func (m *MockcostStore) GetDailyCost(agentID string) (float64, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetDailyCost", agentID)
	cost, _ := ret[0].(float64)
	err, _ := ret[1].(error)
	return cost, err
}

func (mr *MockcostStoreMockRecorder) GetDailyCost(agentID any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetDailyCost", reflect.TypeOf((*MockcostStore)(nil).GetDailyCost), agentID)
}

func (m *MockcostStore) GetMonthlyCost(agentID string) (float64, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetMonthlyCost", agentID)
	cost, _ := ret[0].(float64)
	err, _ := ret[1].(error)
	return cost, err
}

func (mr *MockcostStoreMockRecorder) GetMonthlyCost(agentID any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetMonthlyCost", reflect.TypeOf((*MockcostStore)(nil).GetMonthlyCost), agentID)
}

func (m *MockcostStore) Close() error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Close")
	err, _ := ret[0].(error)
	return err
}

func (mr *MockcostStoreMockRecorder) Close() *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Close", reflect.TypeOf((*MockcostStore)(nil).Close))
}

// MockCostCalculator is a hand-written gomock-style mock of the
// CostCalculator collaborator.
type MockCostCalculator struct {
	ctrl     *gomock.Controller
	recorder *MockCostCalculatorMockRecorder
}

type MockCostCalculatorMockRecorder struct {
	mock *MockCostCalculator
}

func NewMockCostCalculator(ctrl *gomock.Controller) *MockCostCalculator {
	m := &MockCostCalculator{ctrl: ctrl}
	m.recorder = &MockCostCalculatorMockRecorder{m}
	return m
}

func (m *MockCostCalculator) EXPECT() *MockCostCalculatorMockRecorder {
	return m.recorder
}

func (m *MockCostCalculator) CalculateCostFromTokens(modelID string, promptTokens, completionTokens int) (float64, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "CalculateCostFromTokens", modelID, promptTokens, completionTokens)
	cost, _ := ret[0].(float64)
	err, _ := ret[1].(error)
	return cost, err
}

func (mr *MockCostCalculatorMockRecorder) CalculateCostFromTokens(modelID, promptTokens, completionTokens any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "CalculateCostFromTokens", reflect.TypeOf((*MockCostCalculator)(nil).CalculateCostFromTokens), modelID, promptTokens, completionTokens)
}
