package listener

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/syntrixbase/searchsync/internal/listener/config"
	"github.com/syntrixbase/searchsync/internal/searchindex/mem_store"
)

// --- Mocks ---

type MockJetStream struct {
	mock.Mock
	jetstream.JetStream
}

func (m *MockJetStream) Publish(ctx context.Context, subject string, data []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error) {
	args := m.Called(ctx, subject, data, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*jetstream.PubAck), args.Error(1)
}

func (m *MockJetStream) CreateOrUpdateStream(ctx context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error) {
	args := m.Called(ctx, cfg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(jetstream.Stream), args.Error(1)
}

func (m *MockJetStream) CreateOrUpdateConsumer(ctx context.Context, stream string, cfg jetstream.ConsumerConfig) (jetstream.Consumer, error) {
	args := m.Called(ctx, stream, cfg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(jetstream.Consumer), args.Error(1)
}

type MockStream struct {
	mock.Mock
	jetstream.Stream
}

type MockConsumer struct {
	mock.Mock
	jetstream.Consumer
}

func (m *MockConsumer) Consume(handler jetstream.MessageHandler, opts ...jetstream.PullConsumeOpt) (jetstream.ConsumeContext, error) {
	args := m.Called(handler)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(jetstream.ConsumeContext), args.Error(1)
}

type MockConsumeContext struct {
	mock.Mock
	jetstream.ConsumeContext
}

func (m *MockConsumeContext) Stop() {
	m.Called()
}

type MockMsg struct {
	mock.Mock
	jetstream.Msg
}

func (m *MockMsg) Data() []byte {
	args := m.Called()
	return args.Get(0).([]byte)
}

func (m *MockMsg) Ack() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockMsg) Nak() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockMsg) NakWithDelay(delay time.Duration) error {
	args := m.Called(delay)
	return args.Error(0)
}

func (m *MockMsg) Metadata() (*jetstream.MsgMetadata, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*jetstream.MsgMetadata), args.Error(1)
}

func (m *MockMsg) Term() error {
	args := m.Called()
	return args.Error(0)
}

// --- Tests ---

func eventData(t *testing.T, ev Event) []byte {
	t.Helper()
	data, err := json.Marshal(ev)
	require.NoError(t, err)
	return data
}

func TestConsumer_Start_Success(t *testing.T) {
	js := new(MockJetStream)
	stream := new(MockStream)
	consumer := new(MockConsumer)
	consumeCtx := new(MockConsumeContext)
	msg := new(MockMsg)

	store := mem_store.New()
	loader := new(MockLoader)
	loader.On("LoadRecord", mock.Anything, "ca_objects", int64(1)).Return(chair(), nil)
	c := NewConsumerFromJS(js, NewHandler(loader, nil), func() Session { return testSession(t, store) },
		config.Config{Workers: 2}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	js.On("CreateOrUpdateStream", ctx, mock.MatchedBy(func(cfg jetstream.StreamConfig) bool {
		return cfg.Name == "SEARCHSYNC" && cfg.Storage == jetstream.FileStorage
	})).Return(stream, nil)
	js.On("CreateOrUpdateConsumer", ctx, "SEARCHSYNC", mock.MatchedBy(func(cfg jetstream.ConsumerConfig) bool {
		return cfg.Durable == "searchsync-indexer" && cfg.FilterSubject == "searchsync.records.>"
	})).Return(consumer, nil)

	acked := make(chan struct{})
	msg.On("Data").Return(eventData(t, Event{Kind: KindSave, Table: "ca_objects", RowID: 1}))
	msg.On("Ack").Return(nil).Run(func(mock.Arguments) { close(acked) })

	consumer.On("Consume", mock.Anything).Return(consumeCtx, nil).Run(func(args mock.Arguments) {
		handler := args.Get(0).(jetstream.MessageHandler)
		go func() {
			handler(msg)
			select {
			case <-acked:
			case <-time.After(5 * time.Second):
			}
			cancel()
		}()
	})
	consumeCtx.On("Stop").Return()

	require.NoError(t, c.Start(ctx))

	js.AssertExpectations(t)
	consumer.AssertExpectations(t)
	msg.AssertExpectations(t)
	_, ok := store.Index(index).Get("1")
	assert.True(t, ok)
}

func TestConsumer_Start_StreamError(t *testing.T) {
	js := new(MockJetStream)
	js.On("CreateOrUpdateStream", mock.Anything, mock.Anything).Return(nil, errors.New("no jetstream"))
	c := NewConsumerFromJS(js, NewHandler(new(MockLoader), nil), nil, config.Config{}, nil)

	err := c.Start(context.Background())
	assert.ErrorContains(t, err, "failed to ensure stream")
}

func TestConsumer_Start_ConsumeError(t *testing.T) {
	js := new(MockJetStream)
	consumer := new(MockConsumer)
	js.On("CreateOrUpdateStream", mock.Anything, mock.Anything).Return(new(MockStream), nil)
	js.On("CreateOrUpdateConsumer", mock.Anything, mock.Anything, mock.Anything).Return(consumer, nil)
	consumer.On("Consume", mock.Anything).Return(nil, errors.New("consumer deleted"))

	store := mem_store.New()
	c := NewConsumerFromJS(js, NewHandler(new(MockLoader), nil), func() Session { return testSession(t, store) },
		config.Config{Workers: 2}, nil)

	err := c.Start(context.Background())
	assert.ErrorContains(t, err, "failed to start consumer")
}

func TestConsumer_Dispatch_InvalidPayload(t *testing.T) {
	c := NewConsumerFromJS(nil, nil, nil, config.Config{}, nil)
	c.workerChans = []chan delivery{make(chan delivery, 1)}
	msg := new(MockMsg)
	msg.On("Data").Return([]byte("invalid-json"))
	msg.On("Term").Return(nil)

	c.dispatch(msg)

	msg.AssertExpectations(t)
	assert.Empty(t, c.workerChans[0])
}

func TestConsumer_Dispatch_Closing(t *testing.T) {
	c := NewConsumerFromJS(nil, nil, nil, config.Config{}, nil)
	c.workerChans = []chan delivery{make(chan delivery, 1)}
	c.closing.Store(true)
	msg := new(MockMsg)
	msg.On("Nak").Return(nil)

	c.dispatch(msg)

	msg.AssertExpectations(t)
	msg.AssertNotCalled(t, "Data")
}

func TestConsumer_Dispatch_PartitionsByRow(t *testing.T) {
	c := NewConsumerFromJS(nil, nil, nil, config.Config{}, nil)
	c.workerChans = make([]chan delivery, 4)
	for i := range c.workerChans {
		c.workerChans[i] = make(chan delivery, 4)
	}

	ev := Event{Kind: KindSave, Table: "ca_objects", RowID: 42}
	for _, kind := range []Kind{KindSave, KindDelete, KindSave} {
		ev.Kind = kind
		msg := new(MockMsg)
		msg.On("Data").Return(eventData(t, ev))
		c.dispatch(msg)
	}

	want := c.partition(&ev)
	assert.Len(t, c.workerChans[want], 3)
}

func TestConsumer_Worker_RetryLogic(t *testing.T) {
	save := Event{Kind: KindSave, Table: "ca_objects", RowID: 1}
	tests := []struct {
		name         string
		event        Event
		loadErr      error
		numDelivered uint64
		metadataErr  error
		expect       string
		nakDelay     time.Duration
	}{
		{name: "success", event: save, expect: "Ack"},
		{name: "first failure", event: save, loadErr: errors.New("timeout"), numDelivered: 1, expect: "NakWithDelay", nakDelay: time.Second},
		{name: "third failure backs off", event: save, loadErr: errors.New("timeout"), numDelivered: 3, expect: "NakWithDelay", nakDelay: 4 * time.Second},
		{name: "max attempts reached", event: save, loadErr: errors.New("timeout"), numDelivered: 5, expect: "Term"},
		{name: "metadata unavailable", event: save, loadErr: errors.New("timeout"), metadataErr: errors.New("not a jetstream message"), expect: "Nak"},
		{name: "fatal", event: Event{Kind: "touch", Table: "ca_objects", RowID: 1}, expect: "Term"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loader := new(MockLoader)
			if tt.loadErr != nil {
				loader.On("LoadRecord", mock.Anything, mock.Anything, mock.Anything).Return(nil, tt.loadErr)
			} else {
				loader.On("LoadRecord", mock.Anything, mock.Anything, mock.Anything).Return(chair(), nil)
			}
			c := NewConsumerFromJS(nil, NewHandler(loader, nil), nil, config.Config{}, nil)
			c.workerChans = []chan delivery{make(chan delivery, 1)}

			msg := new(MockMsg)
			if tt.loadErr != nil {
				if tt.metadataErr != nil {
					msg.On("Metadata").Return(nil, tt.metadataErr)
				} else {
					msg.On("Metadata").Return(&jetstream.MsgMetadata{NumDelivered: tt.numDelivered}, nil)
				}
			}
			switch tt.expect {
			case "NakWithDelay":
				msg.On("NakWithDelay", tt.nakDelay).Return(nil)
			default:
				msg.On(tt.expect).Return(nil)
			}

			ev := tt.event
			c.workerChans[0] <- delivery{msg: msg, event: &ev, received: time.Now()}
			close(c.workerChans[0])
			c.wg.Add(1)
			c.workerLoop(context.Background(), 0, testSession(t, mem_store.New()))

			msg.AssertExpectations(t)
		})
	}
}

func TestConsumer_Backoff(t *testing.T) {
	c := NewConsumerFromJS(nil, nil, nil, config.Config{InitialBackoff: time.Second, MaxBackoff: 10 * time.Second}, nil)

	assert.Equal(t, time.Second, c.backoff(0))
	assert.Equal(t, time.Second, c.backoff(1))
	assert.Equal(t, 2*time.Second, c.backoff(2))
	assert.Equal(t, 8*time.Second, c.backoff(4))
	assert.Equal(t, 10*time.Second, c.backoff(5))
	assert.Equal(t, 10*time.Second, c.backoff(60))
}
