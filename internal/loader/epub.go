package loader

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"path"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/UjjwalSharma01/reader/pkg/domain"
)

const containerPath = "META-INF/container.xml"

// chapterLoadConcurrency bounds the number of spine sections parsed at once.
const chapterLoadConcurrency = 4

// EPUBLoader unpacks a structured document package into an ordered chapter
// sequence. Sections load concurrently and settle independently: one bad
// chapter degrades to a placeholder, never failing the document. Only a
// missing or unreadable manifest is fatal (domain.ErrInvalidContainer).
type EPUBLoader struct{}

type containerXML struct {
	RootFiles []struct {
		FullPath  string `xml:"full-path,attr"`
		MediaType string `xml:"media-type,attr"`
	} `xml:"rootfiles>rootfile"`
}

type opfPackage struct {
	Metadata struct {
		Titles   []string `xml:"title"`
		Creators []string `xml:"creator"`
		Language string   `xml:"language"`
	} `xml:"metadata"`
	Manifest struct {
		Items []struct {
			ID   string `xml:"id,attr"`
			Href string `xml:"href,attr"`
		} `xml:"item"`
	} `xml:"manifest"`
	Spine struct {
		ItemRefs []struct {
			IDRef string `xml:"idref,attr"`
		} `xml:"itemref"`
	} `xml:"spine"`
}

// Load parses the container and package, then assembles sanitized chapters
// in spine order regardless of load completion order.
func (l *EPUBLoader) Load(ctx context.Context, payload []byte) (*Rendition, error) {
	zr, err := zip.NewReader(bytes.NewReader(payload), int64(len(payload)))
	if err != nil {
		return nil, fmt.Errorf("%w: not a zip archive: %v", domain.ErrInvalidContainer, err)
	}
	files := indexArchive(zr)

	opfPath, err := locateOPF(zr, files)
	if err != nil {
		return nil, err
	}
	pkg, err := parseOPF(files, opfPath)
	if err != nil {
		return nil, err
	}

	hrefs := spineHrefs(pkg, path.Dir(opfPath))
	if len(hrefs) == 0 {
		return nil, fmt.Errorf("%w: spine lists no sections", domain.ErrInvalidContainer)
	}

	rendition := &Rendition{
		Format:   domain.FormatEPUB,
		Language: strings.TrimSpace(pkg.Metadata.Language),
		Chapters: loadChapters(ctx, files, hrefs),
	}
	if len(pkg.Metadata.Titles) > 0 {
		rendition.Title = strings.TrimSpace(pkg.Metadata.Titles[0])
	}
	if len(pkg.Metadata.Creators) > 0 {
		rendition.Author = strings.TrimSpace(pkg.Metadata.Creators[0])
	}
	return rendition, nil
}

// indexArchive maps lowercased, slash-normalized names to entries so lookups
// tolerate case and path separator variance.
func indexArchive(zr *zip.Reader) map[string]*zip.File {
	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[normalizeArchivePath(f.Name)] = f
	}
	return files
}

func normalizeArchivePath(name string) string {
	return strings.ToLower(path.Clean(strings.ReplaceAll(name, "\\", "/")))
}

// locateOPF finds the package document via container.xml, falling back to
// scanning for any .opf entry.
func locateOPF(zr *zip.Reader, files map[string]*zip.File) (string, error) {
	if data, err := readArchiveFile(files, containerPath); err == nil {
		var c containerXML
		if err := xml.Unmarshal(stripBOM(data), &c); err == nil {
			for _, rf := range c.RootFiles {
				if p := strings.TrimSpace(rf.FullPath); p != "" {
					return p, nil
				}
			}
		}
	}
	for _, f := range zr.File {
		if strings.HasSuffix(strings.ToLower(f.Name), ".opf") {
			return f.Name, nil
		}
	}
	return "", fmt.Errorf("%w: no package document found", domain.ErrInvalidContainer)
}

func parseOPF(files map[string]*zip.File, opfPath string) (*opfPackage, error) {
	data, err := readArchiveFile(files, opfPath)
	if err != nil {
		return nil, fmt.Errorf("%w: read package document: %v", domain.ErrInvalidContainer, err)
	}
	var pkg opfPackage
	dec := xml.NewDecoder(bytes.NewReader(stripBOM(data)))
	dec.Strict = false
	dec.Entity = xml.HTMLEntity
	if err := dec.Decode(&pkg); err != nil {
		return nil, fmt.Errorf("%w: parse package document: %v", domain.ErrInvalidContainer, err)
	}
	return &pkg, nil
}

// spineHrefs resolves spine itemrefs through the manifest to archive paths in
// reading order. Unresolvable refs are skipped.
func spineHrefs(pkg *opfPackage, opfDir string) []string {
	manifest := make(map[string]string, len(pkg.Manifest.Items))
	for _, item := range pkg.Manifest.Items {
		manifest[item.ID] = item.Href
	}
	var hrefs []string
	for _, ref := range pkg.Spine.ItemRefs {
		href, ok := manifest[ref.IDRef]
		if !ok || strings.TrimSpace(href) == "" {
			continue
		}
		if opfDir != "." && opfDir != "" {
			href = path.Join(opfDir, href)
		}
		hrefs = append(hrefs, href)
	}
	return hrefs
}

// loadChapters fires all section loads concurrently and joins on completion
// of every one (all-settle). Results land in their spine slot, so the final
// order is manifest order no matter which load finishes first. A failed
// section becomes a placeholder chapter instead of an error.
func loadChapters(ctx context.Context, files map[string]*zip.File, hrefs []string) []domain.Chapter {
	chapters := make([]domain.Chapter, len(hrefs))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(chapterLoadConcurrency)
	for i, href := range hrefs {
		i, href := i, href
		g.Go(func() error {
			chapters[i] = loadChapter(files, i, href)
			return nil
		})
	}
	_ = g.Wait()
	return chapters
}

func loadChapter(files map[string]*zip.File, index int, href string) domain.Chapter {
	chapter := domain.Chapter{
		Index: index,
		Title: "Chapter " + strconv.Itoa(index+1),
		Href:  href,
	}
	data, err := readArchiveFile(files, href)
	if err != nil {
		chapter.Content = "Failed to load chapter: " + err.Error()
		chapter.Mode = domain.ModePlainText
		return chapter
	}
	result := Sanitize(data)
	chapter.Content = result.Content
	chapter.Mode = result.Mode
	return chapter
}

func readArchiveFile(files map[string]*zip.File, name string) ([]byte, error) {
	f, ok := files[normalizeArchivePath(name)]
	if !ok {
		return nil, fmt.Errorf("file %q not in archive", name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", name, err)
	}
	defer rc.Close()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(rc); err != nil {
		return nil, fmt.Errorf("read %q: %w", name, err)
	}
	return buf.Bytes(), nil
}
