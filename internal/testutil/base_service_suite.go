package testutil

import (
	"context"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/tradingbrain/licensing/internal/config"
	"github.com/tradingbrain/licensing/internal/logger"
	"github.com/tradingbrain/licensing/internal/types"
	"github.com/tradingbrain/licensing/internal/validator"
)

// TestIPNSecret is the signing secret configured for service tests
const TestIPNSecret = "test-ipn-secret"

// BaseServiceTestSuite provides common functionality for all service test suites
type BaseServiceTestSuite struct {
	suite.Suite
	ctx        context.Context
	store      *FaultyStore
	dispatcher *MockDispatcher
	publisher  *InMemoryEventPublisher
	monitor    *RecordingMonitor
	logger     *logger.Logger
	config     *config.Configuration
	now        time.Time
}

// SetupSuite is called once before running the tests in the suite
func (s *BaseServiceTestSuite) SetupSuite() {
	// Initialize validator
	validator.NewValidator()

	cfg := config.GetDefaultConfig()
	cfg.Logging.Level = types.LogLevelInfo
	cfg.Webhook.IPNSecret = TestIPNSecret
	cfg.Store.Driver = types.StoreDriverMemory
	cfg.Store.Timeout = 200 * time.Millisecond
	cfg.Email.Timeout = 200 * time.Millisecond
	s.config = cfg
	s.logger = logger.NewNoopLogger()
}

// SetupTest is called before each test
func (s *BaseServiceTestSuite) SetupTest() {
	s.ctx = SetupContext()
	s.store = NewFaultyStore()
	s.dispatcher = NewMockDispatcher()
	s.publisher = NewInMemoryEventPublisher()
	s.monitor = NewRecordingMonitor()
	s.now = time.Now().UTC()
}

// TearDownTest is called after each test
func (s *BaseServiceTestSuite) TearDownTest() {
	s.store.Clear()
	s.dispatcher.Clear()
	s.publisher.Clear()
	s.monitor.Clear()
}

// GetContext returns the test context
func (s *BaseServiceTestSuite) GetContext() context.Context {
	return s.ctx
}

// GetConfig returns the test configuration
func (s *BaseServiceTestSuite) GetConfig() *config.Configuration {
	return s.config
}

// GetStore returns the test license and customer store
func (s *BaseServiceTestSuite) GetStore() *FaultyStore {
	return s.store
}

// GetDispatcher returns the test email dispatcher
func (s *BaseServiceTestSuite) GetDispatcher() *MockDispatcher {
	return s.dispatcher
}

// GetPublisher returns the test event publisher
func (s *BaseServiceTestSuite) GetPublisher() *InMemoryEventPublisher {
	return s.publisher
}

// GetMonitor returns the test monitor
func (s *BaseServiceTestSuite) GetMonitor() *RecordingMonitor {
	return s.monitor
}

// GetLogger returns the test logger
func (s *BaseServiceTestSuite) GetLogger() *logger.Logger {
	return s.logger
}

// GetNow returns the current test time
func (s *BaseServiceTestSuite) GetNow() time.Time {
	return s.now.UTC()
}
