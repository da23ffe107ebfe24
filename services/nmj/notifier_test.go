package nmj

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/spf13/afero"

	"medialib/config"
)

type fakeProber struct {
	settings DeviceSettings
	err      error
	lastHost string
}

func (f *fakeProber) Probe(_ context.Context, host string) (DeviceSettings, error) {
	f.lastHost = host
	return f.settings, f.err
}

type fakeScanner struct {
	err   error
	calls []DeviceSettings
}

func (f *fakeScanner) Scan(_ context.Context, dev DeviceSettings) error {
	f.calls = append(f.calls, dev)
	return f.err
}

func newTestManager(t *testing.T, nmj config.NMJSettings) *config.Manager {
	t.Helper()
	mgr := config.NewManagerWithFs(afero.NewMemMapFs(), "settings.json")
	s := config.DefaultSettings()
	s.NMJ = nmj
	if err := mgr.Save(s); err != nil {
		t.Fatalf("save settings: %v", err)
	}
	return mgr
}

func TestNotifier_DownloadSkippedWhenDisabled(t *testing.T) {
	scanner := &fakeScanner{}
	n := NewNotifier(newTestManager(t, config.NMJSettings{Host: "pch", Database: "/a.db"}), &fakeProber{}, scanner)

	if n.NotifyDownload(context.Background(), "Show S01E01") {
		t.Fatalf("expected download notification to be skipped")
	}
	if n.NotifySubtitleDownload(context.Background(), "Show S01E01", "en") {
		t.Fatalf("expected subtitle notification to be skipped")
	}
	if len(scanner.calls) != 0 {
		t.Fatalf("expected no scans, got %d", len(scanner.calls))
	}
}

func TestNotifier_DownloadUsesSavedSettings(t *testing.T) {
	scanner := &fakeScanner{}
	saved := config.NMJSettings{Enabled: true, Host: "pch", Database: "/a.db", Mount: "smb://pch/share"}
	n := NewNotifier(newTestManager(t, saved), &fakeProber{}, scanner)

	if !n.NotifyDownload(context.Background(), "Show S01E01") {
		t.Fatalf("expected download notification to succeed")
	}
	want := DeviceSettings{Host: "pch", Database: "/a.db", Mount: "smb://pch/share"}
	if len(scanner.calls) != 1 || scanner.calls[0] != want {
		t.Fatalf("unexpected scan calls: %+v", scanner.calls)
	}
}

func TestNotifier_NotifyFillsOmittedFields(t *testing.T) {
	scanner := &fakeScanner{}
	saved := config.NMJSettings{Enabled: false, Host: "pch", Database: "/a.db", Mount: "smb://pch/share"}
	n := NewNotifier(newTestManager(t, saved), &fakeProber{}, scanner)

	if n.Notify(context.Background(), DeviceSettings{Host: "other"}, false) {
		t.Fatalf("expected disabled notifier to skip without force")
	}
	if !n.Notify(context.Background(), DeviceSettings{Host: "other"}, true) {
		t.Fatalf("expected forced notify to succeed")
	}
	want := DeviceSettings{Host: "other", Database: "/a.db", Mount: "smb://pch/share"}
	if len(scanner.calls) != 1 || scanner.calls[0] != want {
		t.Fatalf("unexpected scan calls: %+v", scanner.calls)
	}
}

type brokenSettings struct{}

func (brokenSettings) Load() (config.Settings, error) {
	return config.Settings{}, errors.New("settings file is corrupt")
}

func (brokenSettings) UpdateNMJ(func(*config.NMJSettings)) (config.Settings, error) {
	return config.Settings{}, errors.New("settings file is corrupt")
}

func TestNotifier_ForcedNotifyIgnoresUnreadableSettings(t *testing.T) {
	scanner := &fakeScanner{}
	n := NewNotifier(brokenSettings{}, &fakeProber{}, scanner)
	target := DeviceSettings{Host: "pch", Database: "/a.db", Mount: "smb://pch/share"}

	if n.Notify(context.Background(), target, false) {
		t.Fatalf("expected unforced notify to fail when settings cannot be read")
	}
	if !n.Notify(context.Background(), target, true) {
		t.Fatalf("expected forced notify to use the given target")
	}
	if len(scanner.calls) != 1 || scanner.calls[0] != target {
		t.Fatalf("unexpected scan calls: %+v", scanner.calls)
	}
}

func TestNotifier_RefusesWithoutDatabase(t *testing.T) {
	scanner := &fakeScanner{}
	n := NewNotifier(newTestManager(t, config.NMJSettings{Enabled: true, Host: "pch"}), &fakeProber{}, scanner)

	if n.NotifyDownload(context.Background(), "Show") {
		t.Fatalf("expected notification without database to fail")
	}
	if len(scanner.calls) != 0 {
		t.Fatalf("scan should not be attempted")
	}
}

func TestNotifier_ScanErrorIsFalse(t *testing.T) {
	scanner := &fakeScanner{err: fmt.Errorf("%w: 5", ErrRemoteScan)}
	n := NewNotifier(nil, &fakeProber{}, scanner)

	if n.TestNotify(context.Background(), "pch", "/a.db", "") {
		t.Fatalf("expected remote error to report false")
	}
	if len(scanner.calls) != 1 {
		t.Fatalf("expected exactly one attempt, got %d", len(scanner.calls))
	}
}

func TestNotifier_NoOpEvents(t *testing.T) {
	scanner := &fakeScanner{}
	n := NewNotifier(newTestManager(t, config.NMJSettings{Enabled: true, Host: "pch", Database: "/a.db"}), &fakeProber{}, scanner)
	ctx := context.Background()

	if n.NotifySnatch(ctx, "Show") || n.NotifyGitUpdate(ctx, "v2") || n.NotifyLogin(ctx, "10.0.0.1") {
		t.Fatalf("snatch, update and login notifications never scan")
	}
	if len(scanner.calls) != 0 {
		t.Fatalf("unexpected scans: %+v", scanner.calls)
	}
}

func TestNotifier_NotifySettingsPersists(t *testing.T) {
	mgr := newTestManager(t, config.NMJSettings{Enabled: true})
	prober := &fakeProber{settings: DeviceSettings{Host: "10.0.0.9", Database: "/tmp/a.db", Mount: "smb://10.0.0.9/share"}}
	n := NewNotifier(mgr, prober, &fakeScanner{})

	if !n.NotifySettings(context.Background(), " 10.0.0.9 ") {
		t.Fatalf("expected probe to succeed")
	}
	if prober.lastHost != "10.0.0.9" {
		t.Fatalf("expected trimmed host, got %q", prober.lastHost)
	}

	s, err := mgr.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := config.NMJSettings{Enabled: true, Host: "10.0.0.9", Database: "/tmp/a.db", Mount: "smb://10.0.0.9/share"}
	if s.NMJ != want {
		t.Fatalf("expected %+v, got %+v", want, s.NMJ)
	}
}

func TestNotifier_NotifySettingsFailures(t *testing.T) {
	for _, probeErr := range []error{ErrNoDatabase, ErrNoMount, errors.New("connection refused")} {
		mgr := newTestManager(t, config.NMJSettings{Database: "/keep.db"})
		n := NewNotifier(mgr, &fakeProber{err: probeErr}, &fakeScanner{})

		if n.NotifySettings(context.Background(), "pch") {
			t.Fatalf("expected failure for %v", probeErr)
		}
		s, err := mgr.Load()
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if s.NMJ.Database != "/keep.db" {
			t.Fatalf("failed probe must not touch saved settings, got %+v", s.NMJ)
		}
	}
}
