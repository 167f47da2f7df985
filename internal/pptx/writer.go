// Package pptx writes minimal PowerPoint (OOXML) packages. It emits only
// the parts a deck of text and bullet slides needs: one master, one layout,
// one theme, a title slide, one slide per entry, and speaker notes.
package pptx

import (
	"archive/zip"
	"fmt"
	"io"
	"strings"
)

// Slide is one content slide in the deck.
type Slide struct {
	Title   string
	Text    string
	Bullets []string
	Notes   string

	// ChartPlaceholder marks slides whose chart renders client-side; the
	// exported file carries a placeholder body instead.
	ChartPlaceholder bool
}

// Document is a full deck: a title slide followed by content slides.
type Document struct {
	Title  string
	Slides []Slide
}

// Slide canvas in EMUs: 13.333 x 7.5 inches (16:9).
const (
	slideWidth  = 12192000
	slideHeight = 6858000
)

const xmlHeader = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n"

const (
	nsDrawing  = "http://schemas.openxmlformats.org/drawingml/2006/main"
	nsRels     = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
	nsPresent  = "http://schemas.openxmlformats.org/presentationml/2006/main"
	nsPkgRels  = "http://schemas.openxmlformats.org/package/2006/relationships"
	nsCtTypes  = "http://schemas.openxmlformats.org/package/2006/content-types"
	relOffice  = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument"
	relMaster  = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/slideMaster"
	relLayout  = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/slideLayout"
	relSlide   = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/slide"
	relTheme   = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/theme"
	relNMaster = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/notesMaster"
	relNSlide  = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/notesSlide"
)

// Write serializes the document as a PPTX package.
func Write(w io.Writer, doc Document) error {
	zw := zip.NewWriter(w)
	for _, p := range buildParts(doc) {
		f, err := zw.Create(p.name)
		if err != nil {
			return fmt.Errorf("create part %s: %w", p.name, err)
		}
		if _, err := f.Write([]byte(p.data)); err != nil {
			return fmt.Errorf("write part %s: %w", p.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalize package: %w", err)
	}
	return nil
}

type part struct {
	name string
	data string
}

// slideCount includes the generated title slide.
func slideCount(doc Document) int { return len(doc.Slides) + 1 }

func buildParts(doc Document) []part {
	n := slideCount(doc)
	hasNotes := false
	for _, s := range doc.Slides {
		if s.Notes != "" {
			hasNotes = true
			break
		}
	}

	parts := []part{
		{"[Content_Types].xml", contentTypes(doc, hasNotes)},
		{"_rels/.rels", rootRels()},
		{"ppt/presentation.xml", presentationXML(doc, hasNotes)},
		{"ppt/_rels/presentation.xml.rels", presentationRels(n, hasNotes)},
		{"ppt/slideMasters/slideMaster1.xml", slideMasterXML()},
		{"ppt/slideMasters/_rels/slideMaster1.xml.rels", slideMasterRels()},
		{"ppt/slideLayouts/slideLayout1.xml", slideLayoutXML()},
		{"ppt/slideLayouts/_rels/slideLayout1.xml.rels", slideLayoutRels()},
		{"ppt/theme/theme1.xml", themeXML()},
	}

	parts = append(parts,
		part{"ppt/slides/slide1.xml", titleSlideXML(doc.Title)},
		part{"ppt/slides/_rels/slide1.xml.rels", slideRels(0)},
	)

	noteIdx := 0
	for i, s := range doc.Slides {
		num := i + 2
		thisNote := 0
		if s.Notes != "" {
			noteIdx++
			thisNote = noteIdx
		}
		parts = append(parts,
			part{fmt.Sprintf("ppt/slides/slide%d.xml", num), contentSlideXML(s)},
			part{fmt.Sprintf("ppt/slides/_rels/slide%d.xml.rels", num), slideRels(thisNote)},
		)
		if thisNote > 0 {
			parts = append(parts,
				part{fmt.Sprintf("ppt/notesSlides/notesSlide%d.xml", thisNote), notesSlideXML(s.Notes)},
				part{fmt.Sprintf("ppt/notesSlides/_rels/notesSlide%d.xml.rels", thisNote), notesSlideRels(num)},
			)
		}
	}

	if hasNotes {
		parts = append(parts,
			part{"ppt/notesMasters/notesMaster1.xml", notesMasterXML()},
			part{"ppt/notesMasters/_rels/notesMaster1.xml.rels", notesMasterRels()},
		)
	}
	return parts
}

func xmlEscape(s string) string {
	r := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&apos;",
	)
	return r.Replace(s)
}

func contentTypes(doc Document, hasNotes bool) string {
	var b strings.Builder
	b.WriteString(xmlHeader)
	fmt.Fprintf(&b, `<Types xmlns=%q>`, nsCtTypes)
	b.WriteString(`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>`)
	b.WriteString(`<Default Extension="xml" ContentType="application/xml"/>`)
	b.WriteString(`<Override PartName="/ppt/presentation.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.presentation.main+xml"/>`)
	b.WriteString(`<Override PartName="/ppt/slideMasters/slideMaster1.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.slideMaster+xml"/>`)
	b.WriteString(`<Override PartName="/ppt/slideLayouts/slideLayout1.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.slideLayout+xml"/>`)
	b.WriteString(`<Override PartName="/ppt/theme/theme1.xml" ContentType="application/vnd.openxmlformats-officedocument.theme+xml"/>`)
	for i := 1; i <= slideCount(doc); i++ {
		fmt.Fprintf(&b, `<Override PartName="/ppt/slides/slide%d.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.slide+xml"/>`, i)
	}
	if hasNotes {
		b.WriteString(`<Override PartName="/ppt/notesMasters/notesMaster1.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.notesMaster+xml"/>`)
		noteIdx := 0
		for _, s := range doc.Slides {
			if s.Notes != "" {
				noteIdx++
				fmt.Fprintf(&b, `<Override PartName="/ppt/notesSlides/notesSlide%d.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.notesSlide+xml"/>`, noteIdx)
			}
		}
	}
	b.WriteString(`</Types>`)
	return b.String()
}

func rootRels() string {
	return xmlHeader + fmt.Sprintf(
		`<Relationships xmlns=%q><Relationship Id="rId1" Type=%q Target="ppt/presentation.xml"/></Relationships>`,
		nsPkgRels, relOffice)
}

func presentationXML(doc Document, hasNotes bool) string {
	var b strings.Builder
	b.WriteString(xmlHeader)
	fmt.Fprintf(&b, `<p:presentation xmlns:a=%q xmlns:r=%q xmlns:p=%q>`, nsDrawing, nsRels, nsPresent)
	b.WriteString(`<p:sldMasterIdLst><p:sldMasterId id="2147483648" r:id="rId1"/></p:sldMasterIdLst>`)
	if hasNotes {
		fmt.Fprintf(&b, `<p:notesMasterIdLst><p:notesMasterId r:id="rId%d"/></p:notesMasterIdLst>`, slideCount(doc)+2)
	}
	b.WriteString(`<p:sldIdLst>`)
	for i := 1; i <= slideCount(doc); i++ {
		fmt.Fprintf(&b, `<p:sldId id="%d" r:id="rId%d"/>`, 255+i, i+1)
	}
	b.WriteString(`</p:sldIdLst>`)
	fmt.Fprintf(&b, `<p:sldSz cx="%d" cy="%d"/><p:notesSz cx="6858000" cy="9144000"/>`, slideWidth, slideHeight)
	b.WriteString(`</p:presentation>`)
	return b.String()
}

func presentationRels(slides int, hasNotes bool) string {
	var b strings.Builder
	b.WriteString(xmlHeader)
	fmt.Fprintf(&b, `<Relationships xmlns=%q>`, nsPkgRels)
	fmt.Fprintf(&b, `<Relationship Id="rId1" Type=%q Target="slideMasters/slideMaster1.xml"/>`, relMaster)
	for i := 1; i <= slides; i++ {
		fmt.Fprintf(&b, `<Relationship Id="rId%d" Type=%q Target="slides/slide%d.xml"/>`, i+1, relSlide, i)
	}
	if hasNotes {
		fmt.Fprintf(&b, `<Relationship Id="rId%d" Type=%q Target="notesMasters/notesMaster1.xml"/>`, slides+2, relNMaster)
	}
	b.WriteString(`</Relationships>`)
	return b.String()
}

const clrMap = `<p:clrMap bg1="lt1" tx1="dk1" bg2="lt2" tx2="dk2" accent1="accent1" accent2="accent2" accent3="accent3" accent4="accent4" accent5="accent5" accent6="accent6" hlink="hlink" folHlink="folHlink"/>`

const emptySpTree = `<p:spTree><p:nvGrpSpPr><p:cNvPr id="1" name=""/><p:cNvGrpSpPr/><p:nvPr/></p:nvGrpSpPr><p:grpSpPr/></p:spTree>`

func slideMasterXML() string {
	return xmlHeader + fmt.Sprintf(
		`<p:sldMaster xmlns:a=%q xmlns:r=%q xmlns:p=%q><p:cSld>%s</p:cSld>%s<p:sldLayoutIdLst><p:sldLayoutId id="2147483649" r:id="rId1"/></p:sldLayoutIdLst></p:sldMaster>`,
		nsDrawing, nsRels, nsPresent, emptySpTree, clrMap)
}

func slideMasterRels() string {
	return xmlHeader + fmt.Sprintf(
		`<Relationships xmlns=%q><Relationship Id="rId1" Type=%q Target="../slideLayouts/slideLayout1.xml"/><Relationship Id="rId2" Type=%q Target="../theme/theme1.xml"/></Relationships>`,
		nsPkgRels, relLayout, relTheme)
}

func slideLayoutXML() string {
	return xmlHeader + fmt.Sprintf(
		`<p:sldLayout xmlns:a=%q xmlns:r=%q xmlns:p=%q type="blank"><p:cSld>%s</p:cSld><p:clrMapOvr><a:masterClrMapping/></p:clrMapOvr></p:sldLayout>`,
		nsDrawing, nsRels, nsPresent, emptySpTree)
}

func slideLayoutRels() string {
	return xmlHeader + fmt.Sprintf(
		`<Relationships xmlns=%q><Relationship Id="rId1" Type=%q Target="../slideMasters/slideMaster1.xml"/></Relationships>`,
		nsPkgRels, relMaster)
}

func notesMasterXML() string {
	return xmlHeader + fmt.Sprintf(
		`<p:notesMaster xmlns:a=%q xmlns:r=%q xmlns:p=%q><p:cSld>%s</p:cSld>%s</p:notesMaster>`,
		nsDrawing, nsRels, nsPresent, emptySpTree, clrMap)
}

func notesMasterRels() string {
	return xmlHeader + fmt.Sprintf(
		`<Relationships xmlns=%q><Relationship Id="rId1" Type=%q Target="../theme/theme1.xml"/></Relationships>`,
		nsPkgRels, relTheme)
}

// themeXML emits the smallest theme PowerPoint accepts: a color scheme, a
// font scheme, and a format scheme with one entry per required list.
func themeXML() string {
	return xmlHeader + fmt.Sprintf(`<a:theme xmlns:a=%q name="Quarry">`+
		`<a:themeElements>`+
		`<a:clrScheme name="Quarry">`+
		`<a:dk1><a:sysClr val="windowText" lastClr="000000"/></a:dk1>`+
		`<a:lt1><a:sysClr val="window" lastClr="FFFFFF"/></a:lt1>`+
		`<a:dk2><a:srgbClr val="44546A"/></a:dk2>`+
		`<a:lt2><a:srgbClr val="E7E6E6"/></a:lt2>`+
		`<a:accent1><a:srgbClr val="8884D8"/></a:accent1>`+
		`<a:accent2><a:srgbClr val="82CA9D"/></a:accent2>`+
		`<a:accent3><a:srgbClr val="FFC658"/></a:accent3>`+
		`<a:accent4><a:srgbClr val="FF7300"/></a:accent4>`+
		`<a:accent5><a:srgbClr val="0088FE"/></a:accent5>`+
		`<a:accent6><a:srgbClr val="70AD47"/></a:accent6>`+
		`<a:hlink><a:srgbClr val="0563C1"/></a:hlink>`+
		`<a:folHlink><a:srgbClr val="954F72"/></a:folHlink>`+
		`</a:clrScheme>`+
		`<a:fontScheme name="Quarry">`+
		`<a:majorFont><a:latin typeface="Calibri Light"/><a:ea typeface=""/><a:cs typeface=""/></a:majorFont>`+
		`<a:minorFont><a:latin typeface="Calibri"/><a:ea typeface=""/><a:cs typeface=""/></a:minorFont>`+
		`</a:fontScheme>`+
		`<a:fmtScheme name="Quarry">`+
		`<a:fillStyleLst><a:solidFill><a:schemeClr val="phClr"/></a:solidFill><a:solidFill><a:schemeClr val="phClr"/></a:solidFill><a:solidFill><a:schemeClr val="phClr"/></a:solidFill></a:fillStyleLst>`+
		`<a:lnStyleLst><a:ln><a:solidFill><a:schemeClr val="phClr"/></a:solidFill></a:ln><a:ln><a:solidFill><a:schemeClr val="phClr"/></a:solidFill></a:ln><a:ln><a:solidFill><a:schemeClr val="phClr"/></a:solidFill></a:ln></a:lnStyleLst>`+
		`<a:effectStyleLst><a:effectStyle><a:effectLst/></a:effectStyle><a:effectStyle><a:effectLst/></a:effectStyle><a:effectStyle><a:effectLst/></a:effectStyle></a:effectStyleLst>`+
		`<a:bgFillStyleLst><a:solidFill><a:schemeClr val="phClr"/></a:solidFill><a:solidFill><a:schemeClr val="phClr"/></a:solidFill><a:solidFill><a:schemeClr val="phClr"/></a:solidFill></a:bgFillStyleLst>`+
		`</a:fmtScheme>`+
		`</a:themeElements>`+
		`</a:theme>`, nsDrawing)
}

// titleShape places a heading across the top of the slide.
func titleShape(text string, big bool) string {
	size := 2800
	if big {
		size = 4000
	}
	return fmt.Sprintf(`<p:sp><p:nvSpPr><p:cNvPr id="2" name="Title"/><p:cNvSpPr><a:spLocks noGrp="1"/></p:cNvSpPr><p:nvPr/></p:nvSpPr>`+
		`<p:spPr><a:xfrm><a:off x="838200" y="365125"/><a:ext cx="10515600" cy="1325563"/></a:xfrm><a:prstGeom prst="rect"><a:avLst/></a:prstGeom></p:spPr>`+
		`<p:txBody><a:bodyPr/><a:lstStyle/><a:p><a:r><a:rPr lang="en-US" sz="%d" b="1"/><a:t>%s</a:t></a:r></a:p></p:txBody></p:sp>`,
		size, xmlEscape(text))
}

// bodyShape renders paragraphs below the heading. Bullet paragraphs carry a
// dash bullet; plain text paragraphs suppress bullets.
func bodyShape(paragraphs []string, bullets bool) string {
	var b strings.Builder
	b.WriteString(`<p:sp><p:nvSpPr><p:cNvPr id="3" name="Content"/><p:cNvSpPr><a:spLocks noGrp="1"/></p:cNvSpPr><p:nvPr/></p:nvSpPr>`)
	b.WriteString(`<p:spPr><a:xfrm><a:off x="838200" y="1825625"/><a:ext cx="10515600" cy="4351338"/></a:xfrm><a:prstGeom prst="rect"><a:avLst/></a:prstGeom></p:spPr>`)
	b.WriteString(`<p:txBody><a:bodyPr/><a:lstStyle/>`)
	if len(paragraphs) == 0 {
		b.WriteString(`<a:p/>`)
	}
	for _, text := range paragraphs {
		if bullets {
			b.WriteString(`<a:p><a:pPr><a:buChar char="&#8211;"/></a:pPr>`)
		} else {
			b.WriteString(`<a:p><a:pPr><a:buNone/></a:pPr>`)
		}
		fmt.Fprintf(&b, `<a:r><a:rPr lang="en-US" sz="1800"/><a:t>%s</a:t></a:r></a:p>`, xmlEscape(text))
	}
	b.WriteString(`</p:txBody></p:sp>`)
	return b.String()
}

func slideShell(shapes string) string {
	return xmlHeader + fmt.Sprintf(
		`<p:sld xmlns:a=%q xmlns:r=%q xmlns:p=%q><p:cSld><p:spTree>`+
			`<p:nvGrpSpPr><p:cNvPr id="1" name=""/><p:cNvGrpSpPr/><p:nvPr/></p:nvGrpSpPr><p:grpSpPr/>`+
			`%s</p:spTree></p:cSld><p:clrMapOvr><a:masterClrMapping/></p:clrMapOvr></p:sld>`,
		nsDrawing, nsRels, nsPresent, shapes)
}

func titleSlideXML(title string) string {
	return slideShell(titleShape(title, true))
}

func contentSlideXML(s Slide) string {
	var paragraphs []string
	bullets := false
	switch {
	case len(s.Bullets) > 0:
		paragraphs = s.Bullets
		bullets = true
	case s.ChartPlaceholder:
		paragraphs = []string{"[Chart rendered in the dashboard]"}
	case s.Text != "":
		paragraphs = strings.Split(s.Text, "\n")
	}
	return slideShell(titleShape(s.Title, false) + bodyShape(paragraphs, bullets))
}

// slideRels links a slide to its layout, plus its notes slide when noteIdx
// is nonzero.
func slideRels(noteIdx int) string {
	var b strings.Builder
	b.WriteString(xmlHeader)
	fmt.Fprintf(&b, `<Relationships xmlns=%q>`, nsPkgRels)
	fmt.Fprintf(&b, `<Relationship Id="rId1" Type=%q Target="../slideLayouts/slideLayout1.xml"/>`, relLayout)
	if noteIdx > 0 {
		fmt.Fprintf(&b, `<Relationship Id="rId2" Type=%q Target="../notesSlides/notesSlide%d.xml"/>`, relNSlide, noteIdx)
	}
	b.WriteString(`</Relationships>`)
	return b.String()
}

func notesSlideXML(notes string) string {
	body := bodyShape(strings.Split(notes, "\n"), false)
	return xmlHeader + fmt.Sprintf(
		`<p:notes xmlns:a=%q xmlns:r=%q xmlns:p=%q><p:cSld><p:spTree>`+
			`<p:nvGrpSpPr><p:cNvPr id="1" name=""/><p:cNvGrpSpPr/><p:nvPr/></p:nvGrpSpPr><p:grpSpPr/>`+
			`%s</p:spTree></p:cSld><p:clrMapOvr><a:masterClrMapping/></p:clrMapOvr></p:notes>`,
		nsDrawing, nsRels, nsPresent, body)
}

func notesSlideRels(slideNum int) string {
	return xmlHeader + fmt.Sprintf(
		`<Relationships xmlns=%q><Relationship Id="rId1" Type=%q Target="../notesMasters/notesMaster1.xml"/><Relationship Id="rId2" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/slide" Target="../slides/slide%d.xml"/></Relationships>`,
		nsPkgRels, relNMaster, slideNum)
}
