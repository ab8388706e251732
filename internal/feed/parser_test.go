package feed

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleFeed = `slug; name; title; cve; cvss_score; affected_versions; reference
contact-form-7;Contact Form 7;Unrestricted File Upload;CVE-2020-35489;10.0;5.0-5.3.1;https://example.org/cf7
akismet;Akismet;"Stored XSS; admin only";CVE-2015-9357;6.1;3.1.4 3.0-3.0.9;https://example.org/akismet
akismet;Akismet;Second issue;;;4.0-4.1;
`

func writeFeed(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_CSV(t *testing.T) {
	threats, err := Load(writeFeed(t, "threats.csv", sampleFeed))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(threats) != 3 {
		t.Fatalf("threats = %d, want 3", len(threats))
	}

	first := threats[0]
	if first.Slug != "contact-form-7" || first.Name != "Contact Form 7" {
		t.Errorf("first = %+v", first)
	}
	if first.AffectedVersions != "5.0-5.3.1" {
		t.Errorf("affected_versions = %q", first.AffectedVersions)
	}
	if first.CVSSScore != "10.0" || first.CVE != "CVE-2020-35489" {
		t.Errorf("cve/cvss = %q/%q", first.CVE, first.CVSSScore)
	}
	if threats[1].Title != "Stored XSS; admin only" {
		t.Errorf("quoted title = %q", threats[1].Title)
	}
	// duplicate slugs are kept in feed order
	if threats[2].Slug != "akismet" || threats[2].Title != "Second issue" {
		t.Errorf("third = %+v", threats[2])
	}
	if threats[2].CVE != "" || threats[2].Reference != "" {
		t.Errorf("empty fields should stay empty: %+v", threats[2])
	}
}

func TestLoad_HeaderOrderIrrelevant(t *testing.T) {
	feed := "reference;affected_versions;Slug;name;cvss_score;cve;title\r\n" +
		"https://example.org;1.0-2.0;hello;Hello Dolly;5.0;CVE-1;Bad thing\r\n"

	threats, err := Load(writeFeed(t, "feed.txt", feed))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(threats) != 1 {
		t.Fatalf("threats = %d, want 1", len(threats))
	}
	got := threats[0]
	if got.Slug != "hello" || got.AffectedVersions != "1.0-2.0" || got.Reference != "https://example.org" || got.Title != "Bad thing" {
		t.Errorf("record = %+v", got)
	}
}

func TestLoad_BOM(t *testing.T) {
	feed := "\ufeffslug;name;title;cve;cvss_score;affected_versions;reference\nx;X;T;C;1;1.0;R\n"
	threats, err := Load(writeFeed(t, "bom.csv", feed))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if threats[0].Slug != "x" {
		t.Errorf("slug = %q", threats[0].Slug)
	}
}

func TestLoad_HeaderOnly(t *testing.T) {
	threats, err := Load(writeFeed(t, "empty.csv", "slug;name;title;cve;cvss_score;affected_versions;reference\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(threats) != 0 {
		t.Errorf("threats = %d, want 0", len(threats))
	}
}

func TestLoad_ShortRow(t *testing.T) {
	feed := "slug;name;title;cve;cvss_score;affected_versions;reference\n" +
		"a;A;T;C;1;1.0;R\n" +
		"b;B;T;C;1;1.0\n"

	_, err := Load(writeFeed(t, "short.csv", feed))
	var malformed *MalformedFeedError
	if !errors.As(err, &malformed) {
		t.Fatalf("error = %v, want *MalformedFeedError", err)
	}
	if malformed.Line != 3 {
		t.Errorf("line = %d, want 3", malformed.Line)
	}
	if malformed.Expected != 7 || malformed.Got != 6 {
		t.Errorf("expected/got = %d/%d, want 7/6", malformed.Expected, malformed.Got)
	}
	if !strings.Contains(err.Error(), "short.csv:3") {
		t.Errorf("error should name file and line: %v", err)
	}
}

func TestLoad_LongRow(t *testing.T) {
	feed := "slug;name;title;cve;cvss_score;affected_versions;reference\na;A;T;C;1;1.0;R;extra\n"
	_, err := Load(writeFeed(t, "long.csv", feed))
	var malformed *MalformedFeedError
	if !errors.As(err, &malformed) {
		t.Fatalf("error = %v, want *MalformedFeedError", err)
	}
}

func TestLoad_MissingColumn(t *testing.T) {
	_, err := Load(writeFeed(t, "cols.csv", "slug;name;title\na;b;c\n"))
	if !errors.Is(err, ErrMissingColumn) {
		t.Fatalf("error = %v, want ErrMissingColumn", err)
	}
	var malformed *MalformedFeedError
	if !errors.As(err, &malformed) {
		t.Errorf("error should be a *MalformedFeedError")
	}
	if !strings.Contains(err.Error(), "affected_versions") {
		t.Errorf("error should list the missing column: %v", err)
	}
}

func TestLoad_EmptyFile(t *testing.T) {
	_, err := Load(writeFeed(t, "nothing.csv", ""))
	if !errors.Is(err, ErrEmptyFeed) {
		t.Fatalf("error = %v, want ErrEmptyFeed", err)
	}
}

func TestLoad_BadQuoting(t *testing.T) {
	feed := "slug;name;title;cve;cvss_score;affected_versions;reference\na;\"unterminated;T;C;1;1.0;R\n"
	_, err := Load(writeFeed(t, "quote.csv", feed))
	var malformed *MalformedFeedError
	if !errors.As(err, &malformed) {
		t.Fatalf("error = %v, want *MalformedFeedError", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.csv")
	_, err := Load(path)
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("error = %v, want fs.ErrNotExist", err)
	}
	if !strings.Contains(err.Error(), path) {
		t.Errorf("error should name the path: %v", err)
	}
}

func TestLoad_TOML(t *testing.T) {
	content := `
[[threat]]
slug = " Contact-Form-7 "
name = "Contact Form 7"
title = "Unrestricted File Upload"
cve = "CVE-2020-35489"
cvss_score = "10.0"
affected_versions = "5.0-5.3.1"
reference = "https://example.org/cf7"

[[threat]]
slug = "akismet"
name = "Akismet"
affected_versions = "3.1.4"
`
	threats, err := Load(writeFeed(t, "threats.toml", content))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(threats) != 2 {
		t.Fatalf("threats = %d, want 2", len(threats))
	}
	if threats[0].Slug != "Contact-Form-7" {
		t.Errorf("slug = %q, want trimmed", threats[0].Slug)
	}
	if threats[1].AffectedVersions != "3.1.4" {
		t.Errorf("affected_versions = %q", threats[1].AffectedVersions)
	}
}

func TestLoad_TOMLMissingSlug(t *testing.T) {
	content := "[[threat]]\nname = \"Nameless\"\n"
	_, err := Load(writeFeed(t, "bad.toml", content))
	if !errors.Is(err, ErrMissingColumn) {
		t.Fatalf("error = %v, want ErrMissingColumn", err)
	}
}

func TestLoad_TOMLSyntax(t *testing.T) {
	_, err := Load(writeFeed(t, "broken.toml", "[[threat]\n"))
	var malformed *MalformedFeedError
	if !errors.As(err, &malformed) {
		t.Fatalf("error = %v, want *MalformedFeedError", err)
	}
}

func TestParseCSV_Reader(t *testing.T) {
	threats, err := ParseCSV(strings.NewReader(sampleFeed), "upload")
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	if len(threats) != 3 {
		t.Errorf("threats = %d, want 3", len(threats))
	}
}
