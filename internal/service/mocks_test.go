package service

import (
	"context"
	"time"

	"warelay/internal/models"
	"warelay/pkg/wassup"

	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

// Mock gateway client
type mockGateway struct {
	refreshResp    *models.Authorization
	refreshErr     error
	refreshCalls   [][3]string
	webhookIDs     []string
	webhookErr     error
	created        []wassup.WebhookRequest
	deleted        []string
	deleteErr      error
	sendUUID       string
	sendTranscript *wassup.Transcript
	sendErr        error
	sentPayloads   []wassup.OutboundPayload
	sentMedia      []models.Attachment
	checkResults   map[string]wassup.LookupResult
	checkErr       error
	checkedNumber  string
	checkedAddrs   []string
	numbers        []wassup.Number
	numbersErr     error
	groups         []wassup.Group
	groupsErr      error
}

func (m *mockGateway) RefreshToken(ctx context.Context, clientID, clientSecret, refreshToken string) (*models.Authorization, error) {
	m.refreshCalls = append(m.refreshCalls, [3]string{clientID, clientSecret, refreshToken})
	return m.refreshResp, m.refreshErr
}

func (m *mockGateway) CreateWebhook(ctx context.Context, cred models.Credential, hook wassup.WebhookRequest) (string, error) {
	if m.webhookErr != nil {
		return "", m.webhookErr
	}
	m.created = append(m.created, hook)
	id := m.webhookIDs[len(m.created)-1]
	return id, nil
}

func (m *mockGateway) DeleteWebhook(ctx context.Context, cred models.Credential, webhookID string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deleted = append(m.deleted, webhookID)
	return nil
}

func (m *mockGateway) SendMessage(ctx context.Context, cred models.Credential, payload wassup.OutboundPayload) (string, *wassup.Transcript, error) {
	m.sentPayloads = append(m.sentPayloads, payload)
	return m.sendUUID, m.sendTranscript, m.sendErr
}

func (m *mockGateway) SendMessageWithAttachment(ctx context.Context, cred models.Credential, payload wassup.OutboundPayload, attachment models.Attachment) (string, *wassup.Transcript, error) {
	m.sentPayloads = append(m.sentPayloads, payload)
	m.sentMedia = append(m.sentMedia, attachment)
	return m.sendUUID, m.sendTranscript, m.sendErr
}

func (m *mockGateway) CheckNumbers(ctx context.Context, cred models.Credential, number string, addresses []string) (map[string]wassup.LookupResult, error) {
	m.checkedNumber = number
	m.checkedAddrs = append([]string{}, addresses...)
	return m.checkResults, m.checkErr
}

func (m *mockGateway) ListNumbers(ctx context.Context, cred models.Credential) ([]wassup.Number, error) {
	return m.numbers, m.numbersErr
}

func (m *mockGateway) ListGroups(ctx context.Context, cred models.Credential) ([]wassup.Group, error) {
	return m.groups, m.groupsErr
}

// Mock gateway factory handing out one shared client
type mockFactory struct {
	gateway *mockGateway
	credErr error
}

func (f *mockFactory) ForChannel(ch *models.Channel) (Gateway, models.Credential, error) {
	if f.credErr != nil {
		return nil, nil, f.credErr
	}
	cred, err := LoadCredential(ch)
	if err != nil {
		return nil, nil, err
	}
	return f.gateway, cred, nil
}

func (f *mockFactory) ForSetup() Gateway {
	return f.gateway
}

// Mock channel store backed by a map
type mockChannelStore struct {
	channels map[int64]*models.Channel
	saved    []*models.Channel
	saveErr  error
	listErr  error
	nextID   int64
}

func newMockChannelStore(channels ...*models.Channel) *mockChannelStore {
	store := &mockChannelStore{channels: make(map[int64]*models.Channel)}
	for _, ch := range channels {
		store.channels[ch.ID] = ch
		if ch.ID >= store.nextID {
			store.nextID = ch.ID
		}
	}
	return store
}

func (s *mockChannelStore) GetChannelByID(ctx context.Context, id int64) (*models.Channel, error) {
	return s.channels[id], nil
}

func (s *mockChannelStore) ListChannelsByType(ctx context.Context, types ...models.ChannelType) ([]*models.Channel, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []*models.Channel
	for _, ch := range s.channels {
		out = append(out, ch)
	}
	return out, nil
}

func (s *mockChannelStore) SaveChannelConfig(ctx context.Context, ch *models.Channel) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saved = append(s.saved, ch)
	return nil
}

func (s *mockChannelStore) CreateChannel(ctx context.Context, ch *models.Channel) error {
	s.nextID++
	ch.ID = s.nextID
	if ch.UUID == "" {
		ch.UUID = "claimed-channel-uuid"
	}
	s.channels[ch.ID] = ch
	return nil
}

// Mock message store
type mockMessageStore struct {
	externalIDs map[int64]string
	wired       map[int64]string
	failed      []int64
	logs        []models.HTTPLog
	logNames    []string
	wireErr     error
}

func newMockMessageStore() *mockMessageStore {
	return &mockMessageStore{
		externalIDs: make(map[int64]string),
		wired:       make(map[int64]string),
	}
}

func (s *mockMessageStore) ExternalIDFor(ctx context.Context, msgID int64) (string, error) {
	return s.externalIDs[msgID], nil
}

func (s *mockMessageStore) MarkWired(ctx context.Context, msgID int64, externalID string) error {
	if s.wireErr != nil {
		return s.wireErr
	}
	s.wired[msgID] = externalID
	return nil
}

func (s *mockMessageStore) MarkFailed(ctx context.Context, msgID int64) error {
	s.failed = append(s.failed, msgID)
	return nil
}

func (s *mockMessageStore) AddHTTPLog(ctx context.Context, msgID int64, description string, log models.HTTPLog) error {
	s.logNames = append(s.logNames, description)
	s.logs = append(s.logs, log)
	return nil
}

// Mock contact store
type mockContactStore struct {
	contacts  map[int64]*models.Contact
	unprobed  []int64
	stale     []int64
	fields    map[int64]map[string]string
	stamps    map[int64]time.Time
	groups    []string
	fieldErr  error
	sampleErr error
}

func newMockContactStore(contacts ...*models.Contact) *mockContactStore {
	store := &mockContactStore{
		contacts: make(map[int64]*models.Contact),
		fields:   make(map[int64]map[string]string),
		stamps:   make(map[int64]time.Time),
	}
	for _, c := range contacts {
		store.contacts[c.ID] = c
	}
	return store
}

func (s *mockContactStore) GetContacts(ctx context.Context, ids []int64) ([]*models.Contact, error) {
	var out []*models.Contact
	for _, id := range ids {
		if c, ok := s.contacts[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *mockContactStore) SetContactField(ctx context.Context, contactID int64, key, stringValue string, datetimeValue *time.Time) error {
	if s.fieldErr != nil {
		return s.fieldErr
	}
	if datetimeValue != nil {
		s.stamps[contactID] = *datetimeValue
		return nil
	}
	if s.fields[contactID] == nil {
		s.fields[contactID] = make(map[string]string)
	}
	s.fields[contactID][key] = stringValue
	return nil
}

func (s *mockContactStore) SampleUnprobed(ctx context.Context, orgID int64, limit int) ([]int64, error) {
	if s.sampleErr != nil {
		return nil, s.sampleErr
	}
	return s.unprobed, nil
}

func (s *mockContactStore) SampleStale(ctx context.Context, orgID int64, cutoff time.Time, limit int) ([]int64, error) {
	return s.stale, nil
}

func (s *mockContactStore) EnsureGroup(ctx context.Context, orgID int64, name, query string) (*models.ContactGroup, error) {
	s.groups = append(s.groups, name)
	return &models.ContactGroup{OrgID: orgID, Name: name, Query: query}, nil
}

// Mock org store
type mockOrgStore struct {
	orgs    []*models.Org
	channel *models.Channel
}

func (s *mockOrgStore) ListOrgsWithActiveChannels(ctx context.Context) ([]*models.Org, error) {
	return s.orgs, nil
}

func (s *mockOrgStore) LatestChannelForOrg(ctx context.Context, orgID int64) (*models.Channel, error) {
	return s.channel, nil
}
