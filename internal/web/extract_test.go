package web

import (
	"testing"
	"time"
)

func TestExtractMainText(t *testing.T) {
	tests := []struct {
		name string
		html string
		max  int
		want string
	}{
		{
			name: "prefers main",
			html: `<html><body><nav>Menu</nav><main><h1>Title</h1><p>Body   text</p><script>x()</script></main><footer>foot</footer></body></html>`,
			want: "Title Body text",
		},
		{
			name: "article when no main",
			html: `<body><div>side</div><article>Story<aside>ad</aside></article></body>`,
			want: "Story",
		},
		{
			name: "role main",
			html: `<body><div role="main">Role content</div><div>other</div></body>`,
			want: "Role content",
		},
		{
			name: "content class",
			html: `<body><div class="wrap content">Inner</div><p>outside</p></body>`,
			want: "Inner",
		},
		{
			name: "content region inside footer is ignored",
			html: `<body><footer><div class="content">Copyright 2024 Example Corp</div></footer><div id="wrap"><p>Real article text.</p></div></body>`,
			want: "Real article text.",
		},
		{
			name: "main inside header is ignored",
			html: `<body><header><nav><main>Menu main</main></nav></header><article>The story.</article></body>`,
			want: "The story.",
		},
		{
			name: "empty main falls through to body",
			html: `<body><main><script>x</script></main><p>Body only</p></body>`,
			want: "Body only",
		},
		{
			name: "strips header and style",
			html: `<body><header>Head</header><style>.a{}</style><p>Text</p></body>`,
			want: "Text",
		},
		{
			name: "truncates runes",
			html: `<main>日本語のテキスト</main>`,
			max:  3,
			want: "日本語",
		},
		{
			name: "no text",
			html: `<html><body><script>only()</script></body></html>`,
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractMainText(tt.html, tt.max); got != tt.want {
				t.Errorf("ExtractMainText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractPublishedAt(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{"article meta", `<head><meta property="article:published_time" content="2026-10-15T08:30:00Z"></head>`, "2026-10-15T08:30:00Z"},
		{"og meta", `<head><meta property="og:published_time" content="2026-01-02"></head>`, "2026-01-02T00:00:00Z"},
		{"name date", `<head><meta name="date" content="2025/12/31"></head>`, "2025-12-31T00:00:00Z"},
		{"itemprop", `<body><span itemprop="datePublished" content="2024-05-06"></span></body>`, "2024-05-06T00:00:00Z"},
		{"time element", `<body><time datetime="2023-03-04T10:00:00+09:00">March</time></body>`, "2023-03-04T01:00:00Z"},
		{"skips unparseable", `<head><meta name="date" content="yesterday"></head><body><time datetime="2022-02-02"></time></body>`, "2022-02-02T00:00:00Z"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractPublishedAt(tt.html)
			if got == nil {
				t.Fatal("got nil")
			}
			if s := got.Format(time.RFC3339); s != tt.want {
				t.Errorf("got %s, want %s", s, tt.want)
			}
		})
	}

	if ExtractPublishedAt(`<p>no date here</p>`) != nil {
		t.Error("absent date should be nil")
	}
}
