package repository

import (
	"context"
	"testing"

	"github.com/caseline-io/caseline-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// MailboxRepositoryTestSuite is the test suite for MailboxRepository
type MailboxRepositoryTestSuite struct {
	suite.Suite
	db       *gorm.DB
	repo     MailboxRepository
	userRepo UserRepository
	testUser *models.User
}

// SetupSuite runs once before all tests
func (s *MailboxRepositoryTestSuite) SetupSuite() {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(s.T(), err)

	db.Exec("PRAGMA foreign_keys = ON")

	err = db.AutoMigrate(&models.User{}, &models.Inbox{}, &models.Outbox{}, &models.Message{}, &models.DocumentRequest{})
	require.NoError(s.T(), err)

	s.db = db
	s.repo = NewMailboxRepository(db)
	s.userRepo = NewUserRepository(db)
}

// TearDownSuite runs once after all tests
func (s *MailboxRepositoryTestSuite) TearDownSuite() {
	sqlDB, _ := s.db.DB()
	if sqlDB != nil {
		sqlDB.Close()
	}
}

// SetupTest runs before each test - clean up data and create a test user
func (s *MailboxRepositoryTestSuite) SetupTest() {
	s.db.Exec("DELETE FROM messages")
	s.db.Exec("DELETE FROM inboxes")
	s.db.Exec("DELETE FROM outboxes")
	s.db.Exec("DELETE FROM users")

	s.testUser = &models.User{Name: "Alice", Email: "alice@example.com", Role: models.RoleRequester}
	require.NoError(s.T(), s.userRepo.Create(context.Background(), s.testUser))
}

// TestMailboxRepositoryTestSuite runs the test suite
func TestMailboxRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(MailboxRepositoryTestSuite))
}

// ==================== Get Tests ====================

func (s *MailboxRepositoryTestSuite) TestGetInbox_Success() {
	inbox, err := s.repo.GetInbox(context.Background(), s.testUser.Inbox.ID)

	require.NoError(s.T(), err)
	assert.Equal(s.T(), s.testUser.ID, inbox.UserID)
}

func (s *MailboxRepositoryTestSuite) TestGetInbox_NotFound() {
	_, err := s.repo.GetInbox(context.Background(), 999)
	assert.ErrorIs(s.T(), err, ErrNotFound)
}

func (s *MailboxRepositoryTestSuite) TestGetInboxByUser_Success() {
	inbox, err := s.repo.GetInboxByUser(context.Background(), s.testUser.ID)

	require.NoError(s.T(), err)
	assert.Equal(s.T(), s.testUser.Inbox.ID, inbox.ID)
}

func (s *MailboxRepositoryTestSuite) TestGetOutboxByUser_Success() {
	outbox, err := s.repo.GetOutboxByUser(context.Background(), s.testUser.ID)

	require.NoError(s.T(), err)
	assert.Equal(s.T(), s.testUser.Outbox.ID, outbox.ID)
}

func (s *MailboxRepositoryTestSuite) TestGetOutboxByUser_NotFound() {
	_, err := s.repo.GetOutboxByUser(context.Background(), 999)
	assert.ErrorIs(s.T(), err, ErrNotFound)
}

// ==================== AdjustUnread Tests ====================

func (s *MailboxRepositoryTestSuite) TestAdjustUnread_Increment() {
	inboxID := s.testUser.Inbox.ID

	count, err := s.repo.AdjustUnread(context.Background(), inboxID, 1)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(1), count)

	count, err = s.repo.AdjustUnread(context.Background(), inboxID, 1)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(2), count)
}

func (s *MailboxRepositoryTestSuite) TestAdjustUnread_DecrementClampsAtZero() {
	inboxID := s.testUser.Inbox.ID

	_, err := s.repo.AdjustUnread(context.Background(), inboxID, 1)
	require.NoError(s.T(), err)

	// Decrement past zero: the clamp lives inside the UPDATE
	count, err := s.repo.AdjustUnread(context.Background(), inboxID, -1)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(0), count)

	count, err = s.repo.AdjustUnread(context.Background(), inboxID, -1)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(0), count)
}

func (s *MailboxRepositoryTestSuite) TestAdjustUnread_LargeNegativeDelta() {
	inboxID := s.testUser.Inbox.ID

	_, err := s.repo.AdjustUnread(context.Background(), inboxID, 3)
	require.NoError(s.T(), err)

	count, err := s.repo.AdjustUnread(context.Background(), inboxID, -10)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(0), count)
}

func (s *MailboxRepositoryTestSuite) TestAdjustUnread_UnknownInbox() {
	_, err := s.repo.AdjustUnread(context.Background(), 999, 1)
	assert.ErrorIs(s.T(), err, ErrNotFound)
}

// ==================== SetUnread Tests ====================

func (s *MailboxRepositoryTestSuite) TestSetUnread_Overwrites() {
	inboxID := s.testUser.Inbox.ID

	count, err := s.repo.SetUnread(context.Background(), inboxID, 7)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(7), count)

	inbox, err := s.repo.GetInbox(context.Background(), inboxID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(7), inbox.UnreadCount)
}

func (s *MailboxRepositoryTestSuite) TestSetUnread_FloorsNegativeAtZero() {
	count, err := s.repo.SetUnread(context.Background(), s.testUser.Inbox.ID, -5)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(0), count)
}
