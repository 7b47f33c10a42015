package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"sharezone-cli/internal/api/apitest"
)

type cliEnv struct {
	t     *testing.T
	be    *apitest.Backend
	state string
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	return &cliEnv{t: t, be: apitest.New(t, "secret"), state: t.TempDir()}
}

func (c *cliEnv) run(stdin string, args ...string) (stdout []byte, stderr []byte, err error) {
	c.t.Helper()

	cmd := NewRootCmd()

	var outBuf bytes.Buffer
	var errBuf bytes.Buffer
	cmd.SetOut(&outBuf)
	cmd.SetErr(&errBuf)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--server", c.be.URL(), "--state-dir", c.state, "--log-level", "error"}, args...))

	e := cmd.Execute()
	return outBuf.Bytes(), errBuf.Bytes(), e
}

// mustRun runs a command that must succeed and returns its "data" value.
func (c *cliEnv) mustRun(stdin string, args ...string) any {
	c.t.Helper()
	stdout, stderr, err := c.run(stdin, args...)
	if err != nil {
		c.t.Fatalf("sharezone %v: %v\nstderr:\n%s", args, err, stderr)
	}
	var env map[string]any
	if err := json.Unmarshal(stdout, &env); err != nil {
		c.t.Fatalf("stdout is not a json envelope: %v\n%s", err, stdout)
	}
	data, ok := env["data"]
	if !ok {
		c.t.Fatalf("envelope without data: %s", stdout)
	}
	return data
}

func (c *cliEnv) login() {
	c.t.Helper()
	c.mustRun("secret\n", "auth", "login")
}

func field(t *testing.T, v any, key string) any {
	t.Helper()
	m, ok := v.(map[string]any)
	if !ok {
		t.Fatalf("expected object, got %#v", v)
	}
	return m[key]
}

func idOf(t *testing.T, v any) int64 {
	t.Helper()
	f, ok := field(t, v, "id").(float64)
	if !ok {
		t.Fatalf("no id in %#v", v)
	}
	return int64(f)
}

func TestAuthLogin_PersistsSessionAcrossInvocations(t *testing.T) {
	c := newCLIEnv(t)

	status := c.mustRun("", "auth", "status")
	if field(t, status, "logged_in") != false {
		t.Fatalf("fresh state should be logged out: %#v", status)
	}

	if _, stderr, err := c.run("nope\n", "auth", "login"); err == nil || !strings.Contains(string(stderr), "wrong password") {
		t.Fatalf("wrong password: err=%v stderr=%s", err, stderr)
	}

	c.login()
	status = c.mustRun("", "auth", "status")
	if field(t, status, "logged_in") != true {
		t.Fatalf("status after login: %#v", status)
	}

	c.mustRun("", "auth", "logout")
	status = c.mustRun("", "auth", "status")
	if field(t, status, "logged_in") != false {
		t.Fatalf("status after logout: %#v", status)
	}
}

func TestAuthLogin_EmptyPasswordSendsNothing(t *testing.T) {
	c := newCLIEnv(t)
	_, stderr, err := c.run("\n", "auth", "login")
	if err == nil || !strings.Contains(string(stderr), "Please enter the password") {
		t.Fatalf("err=%v stderr=%s", err, stderr)
	}
	if n := c.be.Hits("POST /api/auth/login"); n != 0 {
		t.Fatalf("login requests = %d", n)
	}
}

func TestSpacesCreate_BecomesCurrentForFileCommands(t *testing.T) {
	c := newCLIEnv(t)
	c.login()

	sp := c.mustRun("", "spaces", "create", "--name", "notes", "--password", "pw")
	spaceID := idOf(t, sp)
	if field(t, sp, "name") != "notes" {
		t.Fatalf("created = %#v", sp)
	}

	created := c.mustRun("hello from stdin\n", "files", "submit", "-")
	ids, _ := field(t, created, "ids").([]any)
	if len(ids) != 1 {
		t.Fatalf("submit = %#v", created)
	}
	fileID := int64(ids[0].(float64))

	list := c.mustRun("", "files", "list")
	files, _ := field(t, list, "files").([]any)
	if len(files) != 1 || idOf(t, files[0]) != fileID {
		t.Fatalf("files = %#v", list)
	}
	if idOf(t, field(t, list, "space")) != spaceID {
		t.Fatalf("listed the wrong space: %#v", list)
	}

	stdout, stderr, err := c.run("", "--format", "text", "files", "show", strconv.FormatInt(fileID, 10))
	if err != nil {
		t.Fatalf("show: %v\n%s", err, stderr)
	}
	if got := string(stdout); got != "hello from stdin\n" {
		t.Fatalf("show text = %q", got)
	}
}

func TestFilesCommands_RequireASpace(t *testing.T) {
	c := newCLIEnv(t)
	c.login()

	_, stderr, err := c.run("", "files", "list")
	if err == nil || !strings.Contains(string(stderr), "spaces use") {
		t.Fatalf("err=%v stderr=%s", err, stderr)
	}
}

func TestUnauthorized_SuggestsLogin(t *testing.T) {
	c := newCLIEnv(t)
	id := c.be.SeedSpace("notes", "pw")

	_, stderr, err := c.run("", "--space", strconv.FormatInt(id, 10), "files", "list")
	if err == nil || !strings.Contains(string(stderr), "sharezone auth login") {
		t.Fatalf("err=%v stderr=%s", err, stderr)
	}
}

func TestSpacesEnterAndUse(t *testing.T) {
	c := newCLIEnv(t)
	c.login()
	a := c.be.SeedSpace("alpha", "pw-a")
	b := c.be.SeedSpace("beta", "pw-b")

	if got := idOf(t, c.mustRun("", "spaces", "enter", "--password", "pw-b")); got != b {
		t.Fatalf("entered %d, want %d", got, b)
	}
	list := c.mustRun("", "spaces", "list")
	if cur := int64(field(t, list, "current").(float64)); cur != b {
		t.Fatalf("current = %d", cur)
	}

	c.mustRun("", "spaces", "use", strconv.FormatInt(a, 10))
	list = c.mustRun("", "spaces", "list")
	if cur := int64(field(t, list, "current").(float64)); cur != a {
		t.Fatalf("current after use = %d", cur)
	}

	if _, stderr, err := c.run("", "spaces", "use", "999"); err == nil || !strings.Contains(string(stderr), "space not found: 999") {
		t.Fatalf("unknown space: err=%v stderr=%s", err, stderr)
	}
}

func TestFilesDelete_AsksUnlessYes(t *testing.T) {
	c := newCLIEnv(t)
	c.login()
	spaceID := idOf(t, c.mustRun("", "spaces", "create", "--name", "notes", "--password", "pw"))
	fileID := c.be.SeedText(spaceID, "doomed")
	arg := strconv.FormatInt(fileID, 10)

	// No answer on stdin declines.
	out := c.mustRun("", "files", "delete", arg)
	if field(t, out, "deleted") != false || c.be.FileCount(spaceID) != 1 {
		t.Fatalf("declined delete removed the file: %#v", out)
	}

	out = c.mustRun("y\n", "files", "delete", arg)
	if field(t, out, "deleted") != true || c.be.FileCount(spaceID) != 0 {
		t.Fatalf("confirmed delete: %#v", out)
	}
}

func TestSpacesDelete_ClearsCurrentSpace(t *testing.T) {
	c := newCLIEnv(t)
	c.login()
	c.mustRun("", "spaces", "create", "--name", "notes", "--password", "pw")

	c.mustRun("", "spaces", "delete", "--yes")
	list := c.mustRun("", "spaces", "list")
	if spaces, _ := field(t, list, "spaces").([]any); len(spaces) != 0 {
		t.Fatalf("space still listed: %#v", list)
	}
	if _, ok := list.(map[string]any)["current"]; ok {
		t.Fatalf("current space not cleared: %#v", list)
	}
}

func TestFilesUpload_OverLimitNeverReachesBackend(t *testing.T) {
	t.Setenv("SHAREZONE_MAX_UPLOAD_BYTES", "8")
	c := newCLIEnv(t)
	c.login()
	spaceID := idOf(t, c.mustRun("", "spaces", "create", "--name", "notes", "--password", "pw"))

	dir := t.TempDir()
	small := filepath.Join(dir, "small.txt")
	big := filepath.Join(dir, "big.txt")
	if err := os.WriteFile(small, []byte("tiny"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(big, []byte("way too big"), 0o644); err != nil {
		t.Fatal(err)
	}

	stdout, _, err := c.run("", "files", "upload", small, big)
	if err == nil {
		t.Fatalf("expected an error for the oversized file")
	}
	var env struct {
		Data struct {
			IDs    []int64  `json:"ids"`
			Failed []string `json:"failed"`
		} `json:"data"`
	}
	if err := json.Unmarshal(stdout, &env); err != nil {
		t.Fatalf("stdout: %v\n%s", err, stdout)
	}
	if len(env.Data.IDs) != 1 || len(env.Data.Failed) != 1 || !strings.HasPrefix(env.Data.Failed[0], "big.txt") {
		t.Fatalf("upload result = %+v", env.Data)
	}
	if names := c.be.FileNames(spaceID); len(names) != 1 || names[0] != "small.txt" {
		t.Fatalf("backend files = %v", names)
	}
}

func TestFilesEditAndDownload(t *testing.T) {
	c := newCLIEnv(t)
	c.login()
	spaceID := idOf(t, c.mustRun("", "spaces", "create", "--name", "notes", "--password", "pw"))
	fileID := c.be.SeedText(spaceID, "first draft")
	arg := strconv.FormatInt(fileID, 10)

	out := c.mustRun("", "files", "edit", arg, "--content", "second draft")
	if field(t, out, "changed") != true {
		t.Fatalf("edit = %#v", out)
	}
	if got := c.be.Texts(spaceID); len(got) != 1 || got[0] != "second draft" {
		t.Fatalf("texts = %v", got)
	}

	dir := t.TempDir()
	out = c.mustRun("", "files", "download", arg, "-o", dir)
	path, _ := field(t, out, "path").(string)
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read download: %v", err)
	}
	if string(b) != "second draft" || filepath.Dir(path) != dir {
		t.Fatalf("downloaded %q to %s", b, path)
	}
}

func TestTextFormat_SpaceList(t *testing.T) {
	c := newCLIEnv(t)
	c.login()

	stdout, _, err := c.run("", "--format", "text", "spaces", "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if got := strings.TrimSpace(string(stdout)); got != "No spaces yet" {
		t.Fatalf("empty list text = %q", got)
	}

	id := c.mustRun("", "spaces", "create", "--name", "notes", "--password", "pw")
	stdout, _, err = c.run("", "--format", "text", "spaces", "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := "* " + strconv.FormatInt(idOf(t, id), 10)
	if !strings.Contains(string(stdout), want) || !strings.Contains(string(stdout), "notes") {
		t.Fatalf("list text = %q", stdout)
	}
}
