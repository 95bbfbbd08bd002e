package git

import "testing"

func TestSlugify(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"Fix Big Bug", "fix-big-bug"},
		{"already-slugged", "already-slugged"},
		{"Mixed CASE Words", "mixed-case-words"},
		{"punctuation, everywhere!", "punctuation-everywhere"},
		{"tabs\tand\nnewlines", "tabs-and-newlines"},
		{"multiple   spaces", "multiple-spaces"},
		{"dash - heavy -- title", "dash-heavy-title"},
		{"émoji 🚀 and àccents", "moji-and-ccents"},
		{"", ""},
		{"!!!", ""},
		{"  leading and trailing  ", "leading-and-trailing"},
		{"v2.0 release", "v20-release"},
	}
	for _, tt := range tests {
		if got := Slugify(tt.title); got != tt.want {
			t.Errorf("Slugify(%q) = %q, want %q", tt.title, got, tt.want)
		}
	}
}

func TestTitleSlug(t *testing.T) {
	tests := []struct {
		title    string
		maxWords int
		want     string
	}{
		{"Fix the big scary login bug", 4, "fix-the-big-scary"},
		{"Fix the big scary login bug", 0, "fix-the-big-scary-login-bug"},
		{"Short", 4, "short"},
		{"One two", 2, "one-two"},
	}
	for _, tt := range tests {
		if got := TitleSlug(tt.title, tt.maxWords); got != tt.want {
			t.Errorf("TitleSlug(%q, %d) = %q, want %q", tt.title, tt.maxWords, got, tt.want)
		}
	}
}

func TestBranchName(t *testing.T) {
	tests := []struct {
		id       int
		title    string
		maxWords int
		want     string
	}{
		{7, "Fix Big Bug", 4, "7-fix-big-bug"},
		{12, "Implement the new parser for configs", 4, "12-implement-the-new-parser"},
		{3, "!!!", 4, "3"},
	}
	for _, tt := range tests {
		if got := BranchName(tt.id, tt.title, tt.maxWords); got != tt.want {
			t.Errorf("BranchName(%d, %q, %d) = %q, want %q", tt.id, tt.title, tt.maxWords, got, tt.want)
		}
	}
}

func TestParseWorktreeList(t *testing.T) {
	out := `worktree /home/dev/proj
HEAD 1111111111111111111111111111111111111111
branch refs/heads/main

worktree /home/dev/proj-7-fix-big-bug
HEAD 2222222222222222222222222222222222222222
branch refs/heads/7-fix-big-bug

worktree /home/dev/detached
HEAD 3333333333333333333333333333333333333333
detached`

	worktrees := parseWorktreeList(out)
	if len(worktrees) != 3 {
		t.Fatalf("parsed %d worktrees, want 3", len(worktrees))
	}
	if worktrees[0].Branch != "main" || worktrees[0].Path != "/home/dev/proj" {
		t.Errorf("first worktree = %+v", worktrees[0])
	}
	if worktrees[1].Branch != "7-fix-big-bug" {
		t.Errorf("second worktree branch = %q", worktrees[1].Branch)
	}
	if worktrees[2].Branch != "" {
		t.Errorf("detached worktree should have empty branch, got %q", worktrees[2].Branch)
	}
}
