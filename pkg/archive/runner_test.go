package archive

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tdeslauriers/portability/pkg/authorization"
	"github.com/tdeslauriers/portability/pkg/provider"
)

type mockJobClient struct {
	initiateFunc func(ctx context.Context, resource string) (string, error)
	stateFunc    func(ctx context.Context, jobId string, poll int) (*provider.ArchiveState, error)

	polls atomic.Int32
}

func (m *mockJobClient) InitiateArchive(ctx context.Context, accessToken, resource string) (string, error) {
	if accessToken != "a1" {
		return "", errors.New("unauthorized")
	}
	return m.initiateFunc(ctx, resource)
}

func (m *mockJobClient) ArchiveState(ctx context.Context, accessToken, jobId string) (*provider.ArchiveState, error) {
	return m.stateFunc(ctx, jobId, int(m.polls.Add(1)))
}

type stateChange struct {
	RecordUuid string
	Resource   string
	From, To   authorization.ResourceState
}

type mockStateWriter struct {
	mu      sync.Mutex
	changes []stateChange
	err     error
}

func (m *mockStateWriter) UpdateResourceState(ctx context.Context, recordUuid, resource string, from, to authorization.ResourceState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.changes = append(m.changes, stateChange{recordUuid, resource, from, to})
	return nil
}

func jobIdFor(ctx context.Context, resource string) (string, error) {
	return "job-" + resource, nil
}

func complete(url string) *provider.ArchiveState {
	return &provider.ArchiveState{State: provider.JobComplete, Urls: []string{url}}
}

func inProgress() *provider.ArchiveState {
	return &provider.ArchiveState{State: provider.JobInProgress}
}

const (
	recordOne = "3f9a1c3e-8b1d-4a3e-9c55-2a6b0c7d9e11"
	recordTwo = "8c2d4e6f-1a3b-4c5d-9e7f-0b1c2d3e4f5a"
)

var testJob = Job{UserId: "u1", RecordUuid: recordOne, AccessToken: "a1", Resources: []string{"myactivity.search"}}

func TestRunnerCompletes(t *testing.T) {

	client := &mockJobClient{
		initiateFunc: jobIdFor,
		stateFunc: func(ctx context.Context, jobId string, poll int) (*provider.ArchiveState, error) {
			assert.Equal(t, "job-myactivity.search", jobId)
			if poll < 3 {
				return inProgress(), nil
			}
			return complete("https://storage.example.com/search.zip"), nil
		},
	}
	writer := &mockStateWriter{}
	out := make(chan Completion, 1)

	r := NewRunner(client, writer, out, PollConfig{Interval: time.Millisecond, MaxAttempts: 10})
	require.NoError(t, r.Start(context.Background(), testJob))
	r.Wait()

	done := <-out
	assert.Equal(t, Completion{UserId: "u1", RecordUuid: recordOne, Resource: "myactivity.search", Url: "https://storage.example.com/search.zip"}, done)
	assert.Equal(t, []stateChange{{recordOne, "myactivity.search", authorization.Granted, authorization.Initiated}}, writer.changes)
	assert.Equal(t, int32(3), client.polls.Load())
	assert.Empty(t, r.InFlight())
}

func TestRunnerFirstPollIsImmediate(t *testing.T) {

	client := &mockJobClient{
		initiateFunc: jobIdFor,
		stateFunc: func(ctx context.Context, jobId string, poll int) (*provider.ArchiveState, error) {
			return complete("https://storage.example.com/search.zip"), nil
		},
	}
	out := make(chan Completion, 1)

	r := NewRunner(client, &mockStateWriter{}, out, PollConfig{Interval: time.Hour})
	require.NoError(t, r.Start(context.Background(), testJob))

	select {
	case done := <-out:
		assert.NoError(t, done.Err)
	case <-time.After(5 * time.Second):
		t.Fatal("first poll waited for the interval")
	}
}

func TestRunnerFailures(t *testing.T) {

	tests := []struct {
		name        string
		initiate    func(ctx context.Context, resource string) (string, error)
		state       func(ctx context.Context, jobId string, poll int) (*provider.ArchiveState, error)
		writerErr   error
		wantErr     error
		wantChanges int
	}{
		{
			name: "initiate rejected",
			initiate: func(ctx context.Context, resource string) (string, error) {
				return "", errors.New("HTTP 403: PERMISSION_DENIED")
			},
			wantErr: authorization.ErrArchiveInitiateFailed,
		},
		{
			name:     "job failed",
			initiate: jobIdFor,
			state: func(ctx context.Context, jobId string, poll int) (*provider.ArchiveState, error) {
				return &provider.ArchiveState{State: provider.JobFailed}, nil
			},
			wantErr:     authorization.ErrArchivePollFailed,
			wantChanges: 1,
		},
		{
			name:     "job cancelled",
			initiate: jobIdFor,
			state: func(ctx context.Context, jobId string, poll int) (*provider.ArchiveState, error) {
				return &provider.ArchiveState{State: provider.JobCancelled}, nil
			},
			wantErr:     authorization.ErrArchivePollFailed,
			wantChanges: 1,
		},
		{
			name:     "poll error is permanent",
			initiate: jobIdFor,
			state: func(ctx context.Context, jobId string, poll int) (*provider.ArchiveState, error) {
				return nil, errors.New("HTTP 500: INTERNAL")
			},
			wantErr:     authorization.ErrArchivePollFailed,
			wantChanges: 1,
		},
		{
			name:     "unknown state",
			initiate: jobIdFor,
			state: func(ctx context.Context, jobId string, poll int) (*provider.ArchiveState, error) {
				return &provider.ArchiveState{State: "EXPLODED"}, nil
			},
			wantErr:     authorization.ErrArchivePollFailed,
			wantChanges: 1,
		},
		{
			name:     "never finishes",
			initiate: jobIdFor,
			state: func(ctx context.Context, jobId string, poll int) (*provider.ArchiveState, error) {
				return inProgress(), nil
			},
			wantErr:     authorization.ErrArchivePollTimeout,
			wantChanges: 1,
		},
		{
			name:      "initiated state not persisted",
			initiate:  jobIdFor,
			writerErr: authorization.ErrInvalidTransition,
			wantErr:   authorization.ErrInvalidTransition,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			client := &mockJobClient{initiateFunc: tc.initiate, stateFunc: tc.state}
			writer := &mockStateWriter{err: tc.writerErr}
			out := make(chan Completion, 1)

			r := NewRunner(client, writer, out, PollConfig{Interval: time.Millisecond, MaxAttempts: 3})
			require.NoError(t, r.Start(context.Background(), testJob))
			r.Wait()

			done := <-out
			assert.ErrorIs(t, done.Err, tc.wantErr)
			assert.Empty(t, done.Url)
			assert.Len(t, writer.changes, tc.wantChanges)
			if errors.Is(tc.wantErr, authorization.ErrArchivePollTimeout) {
				assert.Equal(t, int32(3), client.polls.Load())
			}
		})
	}
}

func TestRunnerResourcesAreIndependent(t *testing.T) {

	client := &mockJobClient{
		initiateFunc: func(ctx context.Context, resource string) (string, error) {
			if resource == "myactivity.maps" {
				return "", errors.New("HTTP 400: INVALID_ARGUMENT")
			}
			return jobIdFor(ctx, resource)
		},
		stateFunc: func(ctx context.Context, jobId string, poll int) (*provider.ArchiveState, error) {
			return complete("https://storage.example.com/" + jobId + ".zip"), nil
		},
	}
	writer := &mockStateWriter{}
	out := make(chan Completion, 2)

	job := testJob
	job.Resources = []string{"myactivity.search", "myactivity.maps"}

	r := NewRunner(client, writer, out, PollConfig{Interval: time.Millisecond})
	require.NoError(t, r.Start(context.Background(), job))
	r.Wait()
	close(out)

	results := map[string]Completion{}
	for c := range out {
		results[c.Resource] = c
	}

	require.Len(t, results, 2)
	assert.NoError(t, results["myactivity.search"].Err)
	assert.Equal(t, "https://storage.example.com/job-myactivity.search.zip", results["myactivity.search"].Url)
	assert.ErrorIs(t, results["myactivity.maps"].Err, authorization.ErrArchiveInitiateFailed)
	assert.Equal(t, []stateChange{{recordOne, "myactivity.search", authorization.Granted, authorization.Initiated}}, writer.changes)
}

func TestRunnerRejectsDuplicateTasks(t *testing.T) {

	release := make(chan struct{})
	started := make(chan struct{}, 1)
	client := &mockJobClient{
		initiateFunc: func(ctx context.Context, resource string) (string, error) {
			started <- struct{}{}
			<-release
			return jobIdFor(ctx, resource)
		},
		stateFunc: func(ctx context.Context, jobId string, poll int) (*provider.ArchiveState, error) {
			return complete("https://storage.example.com/search.zip"), nil
		},
	}
	out := make(chan Completion, 2)

	r := NewRunner(client, &mockStateWriter{}, out, PollConfig{Interval: time.Millisecond})
	require.NoError(t, r.Start(context.Background(), testJob))
	<-started

	inFlight := r.InFlight()
	require.Len(t, inFlight, 1)
	assert.Equal(t, TaskKey{UserId: "u1", Resource: "myactivity.search"}, inFlight[0].TaskKey)
	assert.Equal(t, recordOne, inFlight[0].RecordUuid)

	err := r.Start(context.Background(), testJob)
	assert.ErrorIs(t, err, authorization.ErrDuplicateTask)

	close(release)
	r.Wait()

	assert.Len(t, out, 1, "only the first task ran")
	assert.Empty(t, r.InFlight())
}

func TestRunnerLatestRecordReplacesTask(t *testing.T) {

	release := make(chan struct{})
	client := &mockJobClient{
		initiateFunc: jobIdFor,
		stateFunc: func(ctx context.Context, jobId string, poll int) (*provider.ArchiveState, error) {
			select {
			case <-release:
				return complete("https://storage.example.com/search.zip"), nil
			default:
				return inProgress(), nil
			}
		},
	}
	writer := &mockStateWriter{}
	out := make(chan Completion, 2)

	r := NewRunner(client, writer, out, PollConfig{Interval: time.Millisecond})
	require.NoError(t, r.Start(context.Background(), testJob))
	require.Eventually(t, func() bool { return client.polls.Load() > 1 }, 5*time.Second, time.Millisecond)

	second := testJob
	second.RecordUuid = recordTwo
	require.NoError(t, r.Start(context.Background(), second))

	require.Eventually(t, func() bool {
		inFlight := r.InFlight()
		return len(inFlight) == 1 && inFlight[0].RecordUuid == recordTwo && inFlight[0].JobId != ""
	}, 5*time.Second, time.Millisecond)

	close(release)
	r.Wait()

	require.Len(t, out, 1, "the replaced task sends no completion")
	done := <-out
	assert.Equal(t, recordTwo, done.RecordUuid)
	assert.NoError(t, done.Err)
	assert.Empty(t, r.InFlight())

	writer.mu.Lock()
	defer writer.mu.Unlock()
	assert.Contains(t, writer.changes, stateChange{recordTwo, "myactivity.search", authorization.Granted, authorization.Initiated})
}

func TestRunnerCancellation(t *testing.T) {

	client := &mockJobClient{
		initiateFunc: jobIdFor,
		stateFunc: func(ctx context.Context, jobId string, poll int) (*provider.ArchiveState, error) {
			return inProgress(), nil
		},
	}
	out := make(chan Completion, 1)
	ctx, cancel := context.WithCancel(context.Background())

	r := NewRunner(client, &mockStateWriter{}, out, PollConfig{Interval: time.Millisecond})
	require.NoError(t, r.Start(ctx, testJob))

	require.Eventually(t, func() bool { return client.polls.Load() > 2 }, 5*time.Second, time.Millisecond)
	cancel()
	r.Wait()

	assert.Len(t, out, 0, "cancelled tasks send no completion")
	assert.Empty(t, r.InFlight())
}

func TestRunnerStartValidation(t *testing.T) {

	r := NewRunner(&mockJobClient{}, &mockStateWriter{}, make(chan Completion), PollConfig{Interval: time.Millisecond})

	assert.Error(t, r.Start(context.Background(), Job{RecordUuid: recordOne, AccessToken: "a1"}))
	assert.Error(t, r.Start(context.Background(), Job{UserId: "u1", RecordUuid: "rec-1", AccessToken: "a1"}), "record uuid must be a uuid")
	assert.ErrorIs(t, r.Start(context.Background(), Job{UserId: "u1", RecordUuid: recordOne}), authorization.ErrNoAccessToken)
	assert.NoError(t, r.Start(context.Background(), Job{UserId: "u1", RecordUuid: recordOne, AccessToken: "a1"}), "no resources is a no-op")
}

func TestJobFor(t *testing.T) {

	record := authorization.NewRecord("u1", "t1", "c1", time.Now())
	record.SetAccessToken("a1", time.Now().Add(time.Hour), []string{"myactivity.search", "myactivity.maps"})
	require.NoError(t, record.Transition("myactivity.maps", authorization.Initiated))

	job := JobFor(record)
	assert.Equal(t, "u1", job.UserId)
	assert.Equal(t, record.Uuid, job.RecordUuid)
	assert.Equal(t, "a1", job.AccessToken)
	assert.Equal(t, []string{"myactivity.search"}, job.Resources, "only granted resources are started")
}
