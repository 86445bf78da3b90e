// Package genre loads the two-level genre taxonomy of spec.md §4.6: a set
// of parent genres (each with a bilingual label and tag prefixed "_MAIN_"),
// each holding a list of subgenre Tags that are what Book.Genres actually
// stores. A Soundex index lets RecoverTag find the most likely tag for a
// genre label an importer couldn't match exactly (e.g. an FB2 producer's
// slightly misspelled or differently-cased genre string).
package genre

import (
	_ "embed"
	"fmt"

	"github.com/beevik/etree"

	"tinyopds/internal/soundex"
	"tinyopds/internal/translit"
)

//go:embed taxonomy.xml
var defaultTaxonomyXML []byte

// Genre is one leaf (subgenre) entry: the tag stored on Book.Genres and its
// bilingual display name.
type Genre struct {
	Tag       string
	NameEn    string
	NameRu    string
	ParentTag string
}

// Parent is one top-level genre grouping, tagged "_MAIN_<tag>" so it can
// never collide with a leaf tag (spec.md §4.6).
type Parent struct {
	Tag      string
	NameEn   string
	NameRu   string
	Children []Genre
}

// Taxonomy is the parsed, indexed genre tree.
type Taxonomy struct {
	parents []Parent
	byTag   map[string]Genre
	phonetic map[string][]string // soundex code -> candidate tags
}

const parentPrefix = "_MAIN_"

// Load parses the embedded default taxonomy.
func Load() (*Taxonomy, error) {
	return parse(defaultTaxonomyXML)
}

// LoadFrom parses a caller-supplied taxonomy document, letting a deployment
// override or extend the embedded genre list without a rebuild.
func LoadFrom(xmlDoc []byte) (*Taxonomy, error) {
	return parse(xmlDoc)
}

func parse(xmlDoc []byte) (*Taxonomy, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(xmlDoc); err != nil {
		return nil, fmt.Errorf("genre: parse taxonomy: %w", err)
	}

	root := doc.SelectElement("genres")
	if root == nil {
		return nil, fmt.Errorf("genre: taxonomy missing <genres> root")
	}

	t := &Taxonomy{
		byTag:    make(map[string]Genre),
		phonetic: make(map[string][]string),
	}

	for _, genreEl := range root.SelectElements("genre") {
		tag := genreEl.SelectAttrValue("tag", "")
		if tag == "" {
			continue
		}
		parent := Parent{
			Tag:    parentPrefix + tag,
			NameEn: nameOf(genreEl, "en"),
			NameRu: nameOf(genreEl, "ru"),
		}

		for _, subEl := range genreEl.SelectElements("subgenre") {
			subTag := subEl.SelectAttrValue("tag", "")
			if subTag == "" {
				continue
			}
			g := Genre{
				Tag:       subTag,
				NameEn:    nameOf(subEl, "en"),
				NameRu:    nameOf(subEl, "ru"),
				ParentTag: parent.Tag,
			}
			parent.Children = append(parent.Children, g)
			t.byTag[subTag] = g
			t.index(g)
		}

		t.parents = append(t.parents, parent)
	}

	return t, nil
}

func nameOf(el *etree.Element, lang string) string {
	for _, child := range el.SelectElements("name") {
		if child.SelectAttrValue("lang", "en") == lang {
			return child.Text()
		}
	}
	return ""
}

// index registers g under the Soundex codes of both its English and
// (GOST-transliterated) Russian names, so RecoverTag can find it from
// either script.
func (t *Taxonomy) index(g Genre) {
	if g.NameEn != "" {
		code := soundex.Encode(g.NameEn)
		t.phonetic[code] = append(t.phonetic[code], g.Tag)
	}
	if g.NameRu != "" {
		code := soundex.EncodeCyrillic(translit.GOST16876, g.NameRu)
		t.phonetic[code] = append(t.phonetic[code], g.Tag)
	}
}

// Tag looks up a subgenre by its exact tag.
func (t *Taxonomy) Tag(tag string) (Genre, bool) {
	g, ok := t.byTag[tag]
	return g, ok
}

// Parents returns the top-level genre groups in taxonomy order.
func (t *Taxonomy) Parents() []Parent {
	return t.parents
}

// RecoverTag finds the tag whose English or Russian name shares label's
// Soundex code, for genre strings an importer could not match exactly
// against the taxonomy (spec.md §4.6). It returns ok=false if label's code
// has no indexed candidate.
func (t *Taxonomy) RecoverTag(label string) (string, bool) {
	if _, ok := t.byTag[label]; ok {
		return label, true
	}

	code := soundex.Encode(label)
	if candidates, ok := t.phonetic[code]; ok && len(candidates) > 0 {
		return candidates[0], true
	}

	code = soundex.EncodeCyrillic(translit.GOST16876, label)
	if candidates, ok := t.phonetic[code]; ok && len(candidates) > 0 {
		return candidates[0], true
	}

	return "", false
}
