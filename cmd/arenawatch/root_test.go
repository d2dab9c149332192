package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/arenawatch/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

const boardPage = `<html><body><table>
<tr><th>Rank</th><th>Spread</th><th>Model</th><th>Score</th><th>Votes</th></tr>
<tr><td>1</td><td>1-2</td><td><a href="/m/1" title="gemini-2.5-pro">Gemini 2.5 Pro</a></td><td>1504</td><td>12,345</td></tr>
<tr><td>2</td><td>1-3</td><td>claude-opus-4</td><td>1490</td><td>987</td></tr>
</table></body></html>`

// execute runs the root command with args, capturing stdout and stderr.
func execute(args ...string) (string, string, error) {
	var stdout, stderr bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// isolate points configuration at throwaway locations.
func isolate(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(envFile, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ARENAWATCH_CONFIG", "")
	t.Setenv("ARENAWATCH_ENV_FILE", envFile)
	t.Setenv("ARENAWATCH_PERSIST", "false")
	t.Setenv("ARENAWATCH_DATA_DIR", t.TempDir())
	t.Setenv("ARENAWATCH_LOG_LEVEL", "error")
}

func arenaServer() *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/leaderboard/", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(boardPage))
	})
	return httptest.NewServer(mux)
}

func TestVersionCmd(t *testing.T) {
	Convey("The version command prints a version line", t, func() {
		out, _, err := execute("version")
		So(err, ShouldBeNil)
		So(out, ShouldStartWith, "arenawatch version ")
		So(out, ShouldContainSubstring, "commit:")
	})
}

func TestAliasesResolveCmd(t *testing.T) {
	Convey("Given an alias file", t, func() {
		isolate(t)
		path := filepath.Join(t.TempDir(), "aliases.yaml")
		So(os.WriteFile(path, []byte("aliases:\n  gpt-4o:\n    - chatgpt-4o-latest\n"), 0o600), ShouldBeNil)
		t.Setenv("ARENAWATCH_ALIAS_FILE", path)

		Convey("Names resolve through normalization and aliases", func() {
			out, _, err := execute("aliases", "resolve", "GPT-4o", "chatgpt-4o-latest")
			So(err, ShouldBeNil)
			So(out, ShouldContainSubstring, "GPT-4o\tgpt4o\n")
			So(out, ShouldContainSubstring, "chatgpt-4o-latest\tgpt4o\n")
			So(out, ShouldContainSubstring, "# gpt4o <- ")
		})

		Convey("OpenRouter spellings drop the vendor and variant", func() {
			out, _, err := execute("aliases", "resolve", "--source", "openrouter", "openai/gpt-4o:free")
			So(err, ShouldBeNil)
			So(out, ShouldContainSubstring, "openai/gpt-4o:free\tgpt4o\n")
		})

		Convey("An unknown source is rejected", func() {
			_, _, err := execute("aliases", "resolve", "--source", "bogus", "x")
			So(err, ShouldNotBeNil)
		})

		Convey("At least one name is required", func() {
			_, _, err := execute("aliases", "resolve")
			So(err, ShouldNotBeNil)
		})
	})
}

func TestAnalyzeCmd(t *testing.T) {
	Convey("Given a reachable leaderboard", t, func() {
		isolate(t)
		srv := arenaServer()
		defer srv.Close()
		t.Setenv("ARENAWATCH_ARENA_BASE_URL", srv.URL)
		t.Setenv("ARENAWATCH_OPENROUTER_BASE_URL", srv.URL)

		Convey("JSON output carries the live rankings", func() {
			out, _, err := execute("analyze", "--category", "coding", "--format", "json")
			So(err, ShouldBeNil)

			var a types.Analysis
			So(json.Unmarshal([]byte(out), &a), ShouldBeNil)
			So(a.Category, ShouldEqual, "coding")
			So(a.Degraded, ShouldBeTrue)
			So(a.Rankings, ShouldHaveLength, 2)
			So(a.Rankings[0].ModelID, ShouldEqual, "gemini-2.5-pro")
		})

		Convey("Markdown output covers every category", func() {
			out, _, err := execute("analyze")
			So(err, ShouldBeNil)
			So(out, ShouldContainSubstring, "# Arena Watch Report")
			So(out, ShouldContainSubstring, "## General")
			So(out, ShouldContainSubstring, "## Coding")
		})

		Convey("An unknown format fails before any fetch", func() {
			_, _, err := execute("analyze", "--format", "xml")
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "xml")
		})

		Convey("An unknown category fails", func() {
			_, _, err := execute("analyze", "--category", "music")
			So(err, ShouldNotBeNil)
		})
	})
}

func TestWire(t *testing.T) {
	Convey("Given persistence enabled", t, func() {
		isolate(t)
		dir := t.TempDir()
		t.Setenv("ARENAWATCH_PERSIST", "true")
		t.Setenv("ARENAWATCH_DATA_DIR", dir)

		cmd := NewRootCmd()
		cmd.SetErr(&bytes.Buffer{})
		cfg, l, err := loadConfig(t.Context(), cmd)
		So(err, ShouldBeNil)

		rt, err := wire(t.Context(), cfg, l)
		So(err, ShouldBeNil)
		defer rt.Close()

		Convey("The SQLite file is created in the data dir", func() {
			_, err := os.Stat(filepath.Join(dir, "arenawatch.db"))
			So(err, ShouldBeNil)
			So(rt.svc, ShouldNotBeNil)
		})
	})

	Convey("A missing alias file fails wiring", t, func() {
		isolate(t)
		t.Setenv("ARENAWATCH_ALIAS_FILE", filepath.Join(t.TempDir(), "nope.yaml"))

		cmd := NewRootCmd()
		cmd.SetErr(&bytes.Buffer{})
		cfg, l, err := loadConfig(t.Context(), cmd)
		So(err, ShouldBeNil)
		_, err = wire(t.Context(), cfg, l)
		So(err, ShouldNotBeNil)
	})
}
