package chat

import "testing"

func TestRoute(t *testing.T) {
	tests := []struct {
		mode string
		want Strategy
	}{
		{"simple", Plain},
		{"data", StoreFiltered},
		{"mssql", StoreFiltered},
		{"doc", DocumentScoped},
		{"gpts", DomainFAQ},
		{"web", WebAugmented},
		{" WEB ", WebAugmented},
		{"", Plain},
		{"unknown", Plain},
	}
	for _, tt := range tests {
		if got := Route(tt.mode); got != tt.want {
			t.Errorf("Route(%q) = %v, want %v", tt.mode, got, tt.want)
		}
	}
}

func TestStrategyString(t *testing.T) {
	for st, want := range map[Strategy]string{Plain: "plain", StoreFiltered: "data", DocumentScoped: "doc", DomainFAQ: "gpts", WebAugmented: "web"} {
		if st.String() != want {
			t.Errorf("%d.String() = %q, want %q", st, st.String(), want)
		}
	}
}

func TestHTMLLinksToMarkdown(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`<a href="https://a.example">A</a>`, `[A](https://a.example)`},
		{`x <a href="u1" target="_blank">one</a> and <a  href="u2">two</a>`, `x [one](u1) and [two](u2)`},
		{`no links`, `no links`},
		{`<a name="x">not a link</a>`, `<a name="x">not a link</a>`},
	}
	for _, tt := range tests {
		if got := HTMLLinksToMarkdown(tt.in); got != tt.want {
			t.Errorf("HTMLLinksToMarkdown(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
