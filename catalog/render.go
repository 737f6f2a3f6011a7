package catalog

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

func element(a atom.Atom, children ...*html.Node) *html.Node {
	n := &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String()}
	for _, c := range children {
		n.AppendChild(c)
	}
	return n
}

func text(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

func withAttr(n *html.Node, key, val string) *html.Node {
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
	return n
}

func table(id string, header []string, rows [][]string) *html.Node {
	tr := element(atom.Tr)
	for _, h := range header {
		tr.AppendChild(element(atom.Th, text(h)))
	}
	t := withAttr(element(atom.Table, element(atom.Thead, tr)), "id", id)

	body := element(atom.Tbody)
	for _, row := range rows {
		tr := element(atom.Tr)
		for _, cell := range row {
			tr.AppendChild(element(atom.Td, text(cell)))
		}
		body.AppendChild(tr)
	}
	t.AppendChild(body)
	return t
}

func itoa(i int) string { return strconv.Itoa(i) }

func (c *Catalog) nameRows() [][]string {
	rows := make([][]string, len(c.Names))
	for i, n := range c.Names {
		rows[i] = []string{itoa(n.Index), n.Name, fmt.Sprintf("0x%08X", n.Flags)}
	}
	return rows
}

func (c *Catalog) importRows() [][]string {
	rows := make([][]string, len(c.Imports))
	for i, e := range c.Imports {
		rows[i] = []string{itoa(e.Index), itoa(int(e.Ref)), e.ClassPackage + "." + e.Class, e.Path}
	}
	return rows
}

func (c *Catalog) exportRows() [][]string {
	rows := make([][]string, len(c.Exports))
	for i, e := range c.Exports {
		rows[i] = []string{itoa(e.Index), itoa(int(e.Ref)), e.Class, e.Super, e.Path, e.Flags, itoa(int(e.Size)), itoa(int(e.Offset))}
	}
	return rows
}

// HTML builds the catalog as an HTML document.
func (c *Catalog) HTML() *html.Node {
	title := fmt.Sprintf("%s (version %d)", c.Package, c.Version)

	summary := element(atom.Dl,
		element(atom.Dt, text("Flags")), element(atom.Dd, text(c.Flags)),
		element(atom.Dt, text("GUID")), element(atom.Dd, text(c.GUID)),
		element(atom.Dt, text("Licensee")), element(atom.Dd, text(itoa(int(c.Licensee)))),
	)

	body := element(atom.Body,
		element(atom.H1, text(title)),
		summary,
		element(atom.H2, text("Names")),
		table("names", []string{"#", "Name", "Flags"}, c.nameRows()),
		element(atom.H2, text("Imports")),
		table("imports", []string{"#", "Ref", "Class", "Path"}, c.importRows()),
		element(atom.H2, text("Exports")),
		table("exports", []string{"#", "Ref", "Class", "Super", "Path", "Flags", "Size", "Offset"}, c.exportRows()),
	)

	meta := withAttr(element(atom.Meta), "charset", "utf-8")
	doc := &html.Node{Type: html.DocumentNode}
	doc.AppendChild(&html.Node{Type: html.DoctypeNode, Data: "html"})
	doc.AppendChild(element(atom.Html, element(atom.Head, meta, element(atom.Title, text(title))), body))
	return doc
}

// RenderHTML writes the catalog as an HTML page.
func (c *Catalog) RenderHTML(w io.Writer) error {
	return html.Render(w, c.HTML())
}

// WriteText writes the catalog as aligned plain-text tables.
func (c *Catalog) WriteText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "Package:\t%s\n", c.Package)
	fmt.Fprintf(tw, "Version:\t%d (licensee %d)\n", c.Version, c.Licensee)
	fmt.Fprintf(tw, "Flags:\t%s\n", c.Flags)
	fmt.Fprintf(tw, "GUID:\t%s\n", c.GUID)

	sections := []struct {
		title  string
		header string
		rows   [][]string
	}{
		{"Names", "#\tName\tFlags", c.nameRows()},
		{"Imports", "#\tRef\tClass\tPath", c.importRows()},
		{"Exports", "#\tRef\tClass\tSuper\tPath\tFlags\tSize\tOffset", c.exportRows()},
	}
	for _, s := range sections {
		fmt.Fprintf(tw, "\n%s (%d)\n%s\n", s.title, len(s.rows), s.header)
		for _, row := range s.rows {
			for i, cell := range row {
				if i > 0 {
					fmt.Fprint(tw, "\t")
				}
				fmt.Fprint(tw, cell)
			}
			fmt.Fprintln(tw)
		}
	}
	return tw.Flush()
}
