package remote

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

// fakeRunner records invocations and returns scripted results
type fakeRunner struct {
	calls   []recordedCall
	results []fakeResult
}

type recordedCall struct {
	name string
	args []string
}

type fakeResult struct {
	result CommandResult
	err    error
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) (CommandResult, error) {
	f.calls = append(f.calls, recordedCall{name: name, args: args})
	if len(f.results) == 0 {
		return CommandResult{}, nil
	}
	next := f.results[0]
	f.results = f.results[1:]
	return next.result, next.err
}

func TestCopyToBuildsScpCommand(t *testing.T) {
	runner := &fakeRunner{}
	ch := NewSSHChannelForTests("gpu-box", runner)

	if err := ch.CopyTo(context.Background(), "/home/me/talk.m4a", "/tmp/talk.m4a"); err != nil {
		t.Fatalf("CopyTo failed: %v", err)
	}

	if len(runner.calls) != 1 {
		t.Fatalf("Expected 1 command, got %d", len(runner.calls))
	}
	call := runner.calls[0]
	if call.name != "scp" {
		t.Errorf("Expected scp, got %s", call.name)
	}
	joined := strings.Join(call.args, " ")
	if !strings.Contains(joined, "/home/me/talk.m4a gpu-box:/tmp/talk.m4a") {
		t.Errorf("Unexpected scp args: %s", joined)
	}
	if !strings.Contains(joined, "ConnectTimeout=5") {
		t.Errorf("Expected connect timeout option, got: %s", joined)
	}
}

func TestCopyFromSurfacesStderr(t *testing.T) {
	runner := &fakeRunner{
		results: []fakeResult{
			{result: CommandResult{Stderr: "No such file or directory", ExitCode: 1}, err: errors.New("exit status 1")},
		},
	}
	ch := NewSSHChannelForTests("gpu-box", runner)

	err := ch.CopyFrom(context.Background(), "/tmp/missing.txt", "/tmp/out.txt")
	if err == nil {
		t.Fatal("Expected error for failed copy")
	}
	if !strings.Contains(err.Error(), "No such file or directory") {
		t.Errorf("Error should include remote stderr, got: %v", err)
	}
}

func TestProbeUsesBatchMode(t *testing.T) {
	runner := &fakeRunner{}
	ch := NewSSHChannelForTests("gpu-box", runner)

	if err := ch.Probe(context.Background(), 5*time.Second); err != nil {
		t.Fatalf("Probe failed: %v", err)
	}

	joined := strings.Join(runner.calls[0].args, " ")
	if !strings.Contains(joined, "BatchMode=yes") {
		t.Errorf("Probe must disable interactive auth, got: %s", joined)
	}
	if !strings.Contains(joined, "ConnectTimeout=5") {
		t.Errorf("Probe must bound connection time, got: %s", joined)
	}
}

func TestProbeFailure(t *testing.T) {
	runner := &fakeRunner{
		results: []fakeResult{
			{result: CommandResult{Stderr: "Connection timed out", ExitCode: 255}, err: errors.New("exit status 255")},
		},
	}
	ch := NewSSHChannelForTests("10.0.0.99", runner)

	err := ch.Probe(context.Background(), time.Second)
	if err == nil {
		t.Fatal("Expected probe error")
	}
	if !strings.Contains(err.Error(), "10.0.0.99") {
		t.Errorf("Error should name the host, got: %v", err)
	}
}

func TestQuote(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", "''"},
		{"plain path", "/tmp/audio.m4a", "/tmp/audio.m4a"},
		{"spaces", "my recording.m4a", "'my recording.m4a'"},
		{"single quote", "it's", `'it'"'"'s'`},
		{"shell metachars", "a;rm -rf /", "'a;rm -rf /'"},
		{"dollar", "$HOME", "'$HOME'"},
		{"backticks", "`id`", "'`id`'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Quote(tt.input); got != tt.want {
				t.Errorf("Quote(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestQuoteAll(t *testing.T) {
	got := QuoteAll("rm", "-f", "/tmp/my file.txt")
	want := "rm -f '/tmp/my file.txt'"
	if got != want {
		t.Errorf("QuoteAll = %q, want %q", got, want)
	}
}
