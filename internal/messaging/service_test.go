package messaging

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/caseline-io/caseline-backend/internal/counter"
	apperrors "github.com/caseline-io/caseline-backend/internal/errors"
	"github.com/caseline-io/caseline-backend/internal/models"
	"github.com/caseline-io/caseline-backend/internal/repository"
	"github.com/caseline-io/caseline-backend/internal/routing"
	"github.com/caseline-io/caseline-backend/internal/thread"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type recordedTask struct {
	name    string
	payload interface{}
}

// fanoutRecorder captures enqueued tasks instead of running them
type fanoutRecorder struct {
	mu    sync.Mutex
	tasks []recordedTask
}

func (r *fanoutRecorder) Enqueue(name string, payload interface{}) <-chan struct{} {
	return r.EnqueueAfter(nil, name, payload)
}

func (r *fanoutRecorder) EnqueueAfter(after <-chan struct{}, name string, payload interface{}) <-chan struct{} {
	r.mu.Lock()
	r.tasks = append(r.tasks, recordedTask{name: name, payload: payload})
	r.mu.Unlock()

	done := make(chan struct{})
	close(done)
	return done
}

func (r *fanoutRecorder) byName(name string) []recordedTask {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []recordedTask
	for _, task := range r.tasks {
		if task.name == name {
			out = append(out, task)
		}
	}
	return out
}

func (r *fanoutRecorder) reset() {
	r.mu.Lock()
	r.tasks = nil
	r.mu.Unlock()
}

// MessagingServiceTestSuite is the test suite for the messaging Service
type MessagingServiceTestSuite struct {
	suite.Suite
	db        *gorm.DB
	users     repository.UserRepository
	mailboxes repository.MailboxRepository
	messages  repository.MessageRepository
	counter   *counter.Service
	tasks     *fanoutRecorder
	service   *Service
}

// SetupSuite runs once before all tests
func (s *MessagingServiceTestSuite) SetupSuite() {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(s.T(), err)

	db.Exec("PRAGMA foreign_keys = ON")

	err = db.AutoMigrate(&models.User{}, &models.Inbox{}, &models.Outbox{}, &models.Message{})
	require.NoError(s.T(), err)

	s.db = db
	s.users = repository.NewUserRepository(db)
	s.mailboxes = repository.NewMailboxRepository(db)
	s.messages = repository.NewMessageRepository(db)
}

// TearDownSuite runs once after all tests
func (s *MessagingServiceTestSuite) TearDownSuite() {
	sqlDB, _ := s.db.DB()
	if sqlDB != nil {
		sqlDB.Close()
	}
}

// SetupTest runs before each test - clean slate and a freshly wired service
func (s *MessagingServiceTestSuite) SetupTest() {
	s.db.Exec("DELETE FROM messages")
	s.db.Exec("DELETE FROM inboxes")
	s.db.Exec("DELETE FROM outboxes")
	s.db.Exec("DELETE FROM users")

	resolver := thread.NewResolver(s.messages, thread.Config{})
	engine := routing.NewEngine(s.users, resolver, routing.NewRoleCache(), nil)

	s.tasks = &fanoutRecorder{}
	s.counter = counter.NewService(s.mailboxes, s.messages, counter.NewMemoryCache(), s.tasks, nil, nil)
	s.service = NewService(s.messages, s.mailboxes, engine, s.counter, s.tasks, nil)
}

// TestMessagingServiceTestSuite runs the test suite
func TestMessagingServiceTestSuite(t *testing.T) {
	suite.Run(t, new(MessagingServiceTestSuite))
}

func (s *MessagingServiceTestSuite) createUser(name, email string, role models.Role) *models.User {
	user := &models.User{Name: name, Email: email, Role: role}
	require.NoError(s.T(), s.users.Create(context.Background(), user))
	return user
}

func (s *MessagingServiceTestSuite) unreadCount(inboxID uint) int64 {
	inbox, err := s.mailboxes.GetInbox(context.Background(), inboxID)
	require.NoError(s.T(), err)
	return inbox.UnreadCount
}

// ==================== Send Tests ====================

func (s *MessagingServiceTestSuite) TestSend_NewMessageReachesSpecialist() {
	alice := s.createUser("Alice", "alice@example.com", models.RoleRequester)
	sam := s.createUser("Sam", "sam@example.com", models.RoleSpecialist)

	msg, err := s.service.Send(context.Background(), SendParams{Body: "need help"}, alice)

	require.NoError(s.T(), err)
	assert.Equal(s.T(), sam.Inbox.ID, msg.InboxID)
	assert.Equal(s.T(), alice.Outbox.ID, msg.OutboxID)
	assert.Equal(s.T(), models.StatusSent, msg.Status)
	assert.Equal(s.T(), models.RoutingDirect, msg.RoutingType)
	assert.Equal(s.T(), int64(1), s.unreadCount(sam.Inbox.ID))
}

func (s *MessagingServiceTestSuite) TestSend_PublishesCounterThenDisplayFanout() {
	alice := s.createUser("Alice", "alice@example.com", models.RoleRequester)
	sam := s.createUser("Sam", "sam@example.com", models.RoleSpecialist)

	msg, err := s.service.Send(context.Background(), SendParams{Body: "need help"}, alice)
	require.NoError(s.T(), err)

	counts := s.tasks.byName(counter.TaskCountChanged)
	require.Len(s.T(), counts, 1)
	assert.Equal(s.T(), counter.CountEvent{InboxID: sam.Inbox.ID, Count: 1}, counts[0].payload)

	fanouts := s.tasks.byName(TaskMessageFanout)
	require.Len(s.T(), fanouts, 1)
	assert.Equal(s.T(), MessageEvent{Kind: "new", InboxID: sam.Inbox.ID, MessageID: msg.ID}, fanouts[0].payload)

	delivers := s.tasks.byName(TaskMessageDeliver)
	require.Len(s.T(), delivers, 1)
	assert.Equal(s.T(), DeliverEvent{MessageID: msg.ID}, delivers[0].payload)

	// Count broadcast first, then the message row, then delivery
	require.Len(s.T(), s.tasks.tasks, 3)
	assert.Equal(s.T(), counter.TaskCountChanged, s.tasks.tasks[0].name)
	assert.Equal(s.T(), TaskMessageFanout, s.tasks.tasks[1].name)
	assert.Equal(s.T(), TaskMessageDeliver, s.tasks.tasks[2].name)
}

func (s *MessagingServiceTestSuite) TestSend_ReplyInfersRoutingType() {
	alice := s.createUser("Alice", "alice@example.com", models.RoleRequester)
	s.createUser("Sam", "sam@example.com", models.RoleSpecialist)

	root, err := s.service.Send(context.Background(), SendParams{Body: "first"}, alice)
	require.NoError(s.T(), err)

	reply, err := s.service.Send(context.Background(), SendParams{Body: "follow-up", ParentMessageID: &root.ID}, alice)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), models.RoutingReply, reply.RoutingType)
	assert.Equal(s.T(), root.ID, *reply.ParentMessageID)
}

func (s *MessagingServiceTestSuite) TestSend_NewMessageFallsBackToCoordinator() {
	alice := s.createUser("Alice", "alice@example.com", models.RoleRequester)
	coord := s.createUser("Coord", "coord@example.com", models.RoleCoordinator)

	msg, err := s.service.Send(context.Background(), SendParams{Body: "anyone there"}, alice)

	require.NoError(s.T(), err)
	assert.Equal(s.T(), coord.Inbox.ID, msg.InboxID)
}

func (s *MessagingServiceTestSuite) TestSend_NoRecipientsIsGeneric() {
	alice := s.createUser("Alice", "alice@example.com", models.RoleRequester)

	_, err := s.service.Send(context.Background(), SendParams{Body: "hello"}, alice)

	assert.ErrorIs(s.T(), err, apperrors.ErrNoRecipients)
}

func (s *MessagingServiceTestSuite) TestSend_ReplyNeverFallsBack() {
	alice := s.createUser("Alice", "alice@example.com", models.RoleRequester)
	coord := s.createUser("Coord", "coord@example.com", models.RoleCoordinator)

	// A thread alice owns, with a coordinator but no specialist in it
	root, err := s.service.Send(context.Background(), SendParams{Body: "first"}, alice)
	require.NoError(s.T(), err)
	require.Equal(s.T(), coord.Inbox.ID, root.InboxID)

	// The reply needs a specialist; with none available it fails even
	// though a coordinator exists, because the coordinator fallback is
	// reserved for new messages
	_, err = s.service.Send(context.Background(), SendParams{Body: "again", ParentMessageID: &root.ID}, alice)
	assert.ErrorIs(s.T(), err, apperrors.ErrNoRecipients)
}

func (s *MessagingServiceTestSuite) TestSend_EmptyBody() {
	alice := s.createUser("Alice", "alice@example.com", models.RoleRequester)

	_, err := s.service.Send(context.Background(), SendParams{Body: "   "}, alice)

	_, ok := apperrors.IsValidation(err)
	assert.True(s.T(), ok)
}

func (s *MessagingServiceTestSuite) TestSend_BodyTooLong() {
	alice := s.createUser("Alice", "alice@example.com", models.RoleRequester)

	_, err := s.service.Send(context.Background(), SendParams{Body: strings.Repeat("a", models.MaxBodyLength+1)}, alice)

	_, ok := apperrors.IsValidation(err)
	assert.True(s.T(), ok)
}

func (s *MessagingServiceTestSuite) TestSend_InvalidRoutingType() {
	alice := s.createUser("Alice", "alice@example.com", models.RoleRequester)
	s.createUser("Sam", "sam@example.com", models.RoleSpecialist)

	_, err := s.service.Send(context.Background(), SendParams{Body: "hello", RoutingType: "broadcast"}, alice)

	_, ok := apperrors.IsValidation(err)
	assert.True(s.T(), ok)
}

// ==================== Delivery / Read Tests ====================

func (s *MessagingServiceTestSuite) TestMarkDelivered() {
	alice := s.createUser("Alice", "alice@example.com", models.RoleRequester)
	s.createUser("Sam", "sam@example.com", models.RoleSpecialist)

	msg, err := s.service.Send(context.Background(), SendParams{Body: "hello"}, alice)
	require.NoError(s.T(), err)

	require.NoError(s.T(), s.service.MarkDelivered(context.Background(), msg.ID))

	found, err := s.messages.GetByID(context.Background(), msg.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), models.StatusDelivered, found.Status)
}

func (s *MessagingServiceTestSuite) TestMarkAsRead_DecrementsOnce() {
	alice := s.createUser("Alice", "alice@example.com", models.RoleRequester)
	sam := s.createUser("Sam", "sam@example.com", models.RoleSpecialist)

	msg, err := s.service.Send(context.Background(), SendParams{Body: "hello"}, alice)
	require.NoError(s.T(), err)
	require.Equal(s.T(), int64(1), s.unreadCount(sam.Inbox.ID))

	changed, err := s.service.MarkAsRead(context.Background(), msg.ID)
	require.NoError(s.T(), err)
	assert.True(s.T(), changed)
	assert.Equal(s.T(), int64(0), s.unreadCount(sam.Inbox.ID))

	// Second read is a no-op, not a second decrement
	changed, err = s.service.MarkAsRead(context.Background(), msg.ID)
	require.NoError(s.T(), err)
	assert.False(s.T(), changed)
	assert.Equal(s.T(), int64(0), s.unreadCount(sam.Inbox.ID))
}

func (s *MessagingServiceTestSuite) TestMarkAsRead_PublishesReadFanout() {
	alice := s.createUser("Alice", "alice@example.com", models.RoleRequester)
	sam := s.createUser("Sam", "sam@example.com", models.RoleSpecialist)

	msg, err := s.service.Send(context.Background(), SendParams{Body: "hello"}, alice)
	require.NoError(s.T(), err)
	s.tasks.reset()

	_, err = s.service.MarkAsRead(context.Background(), msg.ID)
	require.NoError(s.T(), err)

	fanouts := s.tasks.byName(TaskMessageFanout)
	require.Len(s.T(), fanouts, 1)
	assert.Equal(s.T(), MessageEvent{Kind: "read", InboxID: sam.Inbox.ID, MessageID: msg.ID}, fanouts[0].payload)
}

func (s *MessagingServiceTestSuite) TestMarkAsRead_UnknownMessage() {
	_, err := s.service.MarkAsRead(context.Background(), 99999)
	assert.ErrorIs(s.T(), err, repository.ErrNotFound)
}

func (s *MessagingServiceTestSuite) TestMustMarkAsRead_AlreadyRead() {
	alice := s.createUser("Alice", "alice@example.com", models.RoleRequester)
	s.createUser("Sam", "sam@example.com", models.RoleSpecialist)

	msg, err := s.service.Send(context.Background(), SendParams{Body: "hello"}, alice)
	require.NoError(s.T(), err)

	require.NoError(s.T(), s.service.MustMarkAsRead(context.Background(), msg.ID))
	assert.ErrorIs(s.T(), s.service.MustMarkAsRead(context.Background(), msg.ID), apperrors.ErrInvalidTransition)
}

// ==================== Bulk Read Tests ====================

// deliver persists an unread message directly, bypassing routing
func (s *MessagingServiceTestSuite) deliver(from, to *models.User) *models.Message {
	msg := &models.Message{
		InboxID:     to.Inbox.ID,
		OutboxID:    from.Outbox.ID,
		Body:        "body",
		Status:      models.StatusSent,
		RoutingType: models.RoutingDirect,
	}
	require.NoError(s.T(), s.messages.Create(context.Background(), msg))
	return msg
}

func (s *MessagingServiceTestSuite) TestMarkManyAsRead_OneCounterAdjustmentPerInbox() {
	alice := s.createUser("Alice", "alice@example.com", models.RoleRequester)
	sam := s.createUser("Sam", "sam@example.com", models.RoleSpecialist)
	coord := s.createUser("Coord", "coord@example.com", models.RoleCoordinator)

	// Two messages into Sam's inbox, one into the coordinator's
	m1 := s.deliver(alice, sam)
	m2 := s.deliver(alice, sam)
	m3 := s.deliver(alice, coord)
	s.tasks.reset()

	count, err := s.service.MarkManyAsRead(context.Background(), []uint{m1.ID, m2.ID, m3.ID}, nil)

	require.NoError(s.T(), err)
	assert.Equal(s.T(), 3, count)
	assert.Equal(s.T(), int64(0), s.unreadCount(sam.Inbox.ID))
	assert.Equal(s.T(), int64(0), s.unreadCount(coord.Inbox.ID))

	// One counter broadcast per touched inbox, one display fan-out per message
	assert.Len(s.T(), s.tasks.byName(counter.TaskCountChanged), 2)
	assert.Len(s.T(), s.tasks.byName(TaskMessageFanout), 3)
}

func (s *MessagingServiceTestSuite) TestMarkManyAsRead_ScopedToInbox() {
	alice := s.createUser("Alice", "alice@example.com", models.RoleRequester)
	sam := s.createUser("Sam", "sam@example.com", models.RoleSpecialist)
	coord := s.createUser("Coord", "coord@example.com", models.RoleCoordinator)

	toSam := s.deliver(alice, sam)
	toCoord := s.deliver(alice, coord)

	inboxID := sam.Inbox.ID
	count, err := s.service.MarkManyAsRead(context.Background(), []uint{toSam.ID, toCoord.ID}, &inboxID)

	require.NoError(s.T(), err)
	assert.Equal(s.T(), 1, count)

	other, err := s.messages.GetByID(context.Background(), toCoord.ID)
	require.NoError(s.T(), err)
	assert.False(s.T(), other.Read)
}

func (s *MessagingServiceTestSuite) TestMarkManyAsRead_NothingUnread() {
	alice := s.createUser("Alice", "alice@example.com", models.RoleRequester)
	sam := s.createUser("Sam", "sam@example.com", models.RoleSpecialist)

	msg := s.deliver(alice, sam)
	_, err := s.messages.MarkRead(context.Background(), msg.ID, time.Now())
	require.NoError(s.T(), err)
	s.tasks.reset()

	count, err := s.service.MarkManyAsRead(context.Background(), []uint{msg.ID}, nil)

	require.NoError(s.T(), err)
	assert.Equal(s.T(), 0, count)
	assert.Empty(s.T(), s.tasks.byName(counter.TaskCountChanged))
	assert.Empty(s.T(), s.tasks.byName(TaskMessageFanout))
}

func (s *MessagingServiceTestSuite) TestMarkAllAsRead_SingleRecalculation() {
	alice := s.createUser("Alice", "alice@example.com", models.RoleRequester)
	sam := s.createUser("Sam", "sam@example.com", models.RoleSpecialist)

	s.deliver(alice, sam)
	s.deliver(alice, sam)
	read := s.deliver(alice, sam)
	_, err := s.messages.MarkRead(context.Background(), read.ID, time.Now())
	require.NoError(s.T(), err)
	s.tasks.reset()

	changed, err := s.service.MarkAllAsRead(context.Background(), sam.Inbox.ID)

	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(2), changed)
	assert.Equal(s.T(), int64(0), s.unreadCount(sam.Inbox.ID))
	assert.Len(s.T(), s.tasks.byName(counter.TaskCountChanged), 1)
}

func (s *MessagingServiceTestSuite) TestMarkAllAsRead_EmptyInbox() {
	s.createUser("Alice", "alice@example.com", models.RoleRequester)
	sam := s.createUser("Sam", "sam@example.com", models.RoleSpecialist)

	changed, err := s.service.MarkAllAsRead(context.Background(), sam.Inbox.ID)

	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(0), changed)
}
