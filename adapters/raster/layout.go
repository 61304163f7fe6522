package invoiceraster

import (
	"image"
	"image/color"
	"image/draw"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"

	"github.com/goliatone/go-invoice/invoice"
)

// Palette shared with the HTML template.
var (
	colorPrimary = rgb(0x1e, 0x40, 0xaf)
	colorAccent  = rgb(0x3b, 0x82, 0xf6)
	colorText    = rgb(0x1f, 0x29, 0x37)
	colorMuted   = rgb(0x4b, 0x55, 0x63)
	colorFaint   = rgb(0x6b, 0x72, 0x80)
	colorBorder  = rgb(0xe5, 0xe7, 0xeb)
	colorPanel   = rgb(0xf9, 0xfa, 0xfb)
	colorAlert   = rgb(0xdc, 0x26, 0x26)
)

const (
	padding  = 32.0
	barWidth = 12.0
	gap      = 24.0
	// Baseline-to-baseline distance of 14px body text.
	lineStep = 22.0
	cellPadX = 16.0
	cellPadY = 12.0
)

type align int

const (
	alignLeft align = iota
	alignRight
	alignCenter
)

type style struct {
	size   float64
	weight weight
	color  color.Color
}

// layout records paint operations in CSS px while tracking the pen
// position. Operations run once the final page height is known.
type layout struct {
	faces *faceCache
	width float64
	scale float64
	ops   []func(dst *image.RGBA)
}

func newLayout(fonts fontSet, width, scale float64) *layout {
	return &layout{
		faces: &faceCache{fonts: fonts, scale: scale, faces: map[faceKey]font.Face{}},
		width: width,
		scale: scale,
	}
}

func (l *layout) close() {
	l.faces.close()
}

// document lays out every section and returns the content height.
func (l *layout) document(m invoice.Model) float64 {
	y := 0.0
	l.gradientBar(y)
	y += barWidth + padding

	y = l.header(m, y) + gap
	y = l.parties(m, y) + gap
	y = l.items(m, y) + gap
	y = l.thanks(m, y) + gap
	y = l.totals(m, y) + gap
	y = l.footer(m, y)

	y += padding
	l.gradientBar(y)
	return y + barWidth
}

func (l *layout) header(m invoice.Model, top float64) float64 {
	right := l.width - padding

	title := style{size: 30, weight: bold, color: colorPrimary}
	label := style{size: 14, weight: bold, color: colorText}
	value := style{size: 14, weight: regular, color: colorText}

	metaRows := [][2]string{
		{"Invoice #: ", m.Meta.InvoiceNumber},
		{"Date: ", m.Meta.Date},
		{"Due Date: ", m.Meta.DueDate},
	}
	metaWidth := l.measure(m.Meta.Title, title)
	for _, row := range metaRows {
		if w := l.measure(row[0], label) + l.measure(row[1], value); w > metaWidth {
			metaWidth = w
		}
	}

	my := top
	l.text(right, my+title.size, m.Meta.Title, title, alignRight)
	my += title.size*1.2 + 8
	for _, row := range metaRows {
		w := l.measure(row[0], label) + l.measure(row[1], value)
		x := right - w
		l.text(x, my+14, row[0], label, alignLeft)
		l.text(x+l.measure(row[0], label), my+14, row[1], value, alignLeft)
		my += lineStep
	}

	avail := right - padding - metaWidth - 24
	name := style{size: 40, weight: bold, color: colorPrimary}
	upper := strings.ToUpper(m.Company.Name)
	for name.size > 20 && l.measure(upper, name) > avail {
		name.size -= 2
	}
	ly := top
	l.text(padding, ly+name.size*0.95, upper, name, alignLeft)
	ly += name.size*1.2 + 12

	muted := style{size: 14, weight: regular, color: colorMuted}
	contact := []string{
		m.Company.Address,
		"Phone: " + m.Company.Phone + " | WhatsApp: " + m.Company.Whatsapp,
		"Email: " + m.Company.Email,
	}
	for _, line := range contact {
		for _, wrapped := range l.wrap(line, muted, avail) {
			l.text(padding, ly+14, wrapped, muted, alignLeft)
			ly += lineStep
		}
	}

	return max(ly, my)
}

func (l *layout) parties(m invoice.Model, top float64) float64 {
	colWidth := (l.width - 2*padding - gap) / 2
	heading := style{size: 18, weight: bold, color: colorPrimary}
	strong := style{size: 14, weight: bold, color: colorText}
	muted := style{size: 14, weight: regular, color: colorMuted}

	column := func(x float64, title string, lines []partyLine) float64 {
		y := top
		l.text(x, y+heading.size, title, heading, alignLeft)
		y += heading.size*1.4 + 10
		for _, line := range lines {
			if line.text == "" {
				continue
			}
			for _, wrapped := range l.wrap(line.text, line.style, colWidth) {
				l.text(x, y+14, wrapped, line.style, alignLeft)
				y += lineStep
			}
		}
		return y
	}

	billTo := []partyLine{
		{m.Client.CompanyName, strong},
		{prefixed("Attn: ", m.Client.ContactPerson), muted},
		{m.Client.Address, muted},
		{prefixed("Phone: ", m.Client.Phone), muted},
		{prefixed("Email: ", m.Client.Email), muted},
	}
	shipTo := []partyLine{{m.Client.ShipTo, strong}}

	left := column(padding, "INVOICE TO:", billTo)
	right := column(padding+colWidth+gap, "SHIP TO:", shipTo)
	return max(left, right)
}

type partyLine struct {
	text  string
	style style
}

type tableColumn struct {
	title string
	width float64
	align align
}

func (l *layout) items(m invoice.Model, top float64) float64 {
	tableWidth := l.width - 2*padding
	cols := []tableColumn{
		{title: "QTY", width: 70, align: alignLeft},
		{title: "DESCRIPTION", align: alignLeft},
		{title: "UNIT PRICE", width: 130, align: alignRight},
		{title: "TAX", width: 80, align: alignRight},
		{title: "AMOUNT", width: 140, align: alignRight},
	}
	fixedWidth := 0.0
	for _, c := range cols {
		fixedWidth += c.width
	}
	cols[1].width = tableWidth - fixedWidth

	head := style{size: 14, weight: bold, color: color.White}
	body := style{size: 14, weight: regular, color: colorText}

	headHeight := 14*1.4 + 2*cellPadY
	l.rect(padding, top, tableWidth, headHeight, colorPrimary)
	x := padding
	for _, c := range cols {
		l.cellText(x, c, top+cellPadY+14, c.title, head)
		x += c.width
	}
	y := top + headHeight

	for _, item := range m.Items {
		desc := l.wrap(item.Description, body, cols[1].width-2*cellPadX)
		if len(desc) == 0 {
			desc = []string{""}
		}
		rowHeight := float64(len(desc))*20 + 2*cellPadY
		values := []string{item.Quantity, "", item.Rate, item.TaxRate, item.Amount}
		x := padding
		for i, c := range cols {
			if i == 1 {
				for j, line := range desc {
					l.cellText(x, c, y+cellPadY+14+float64(j)*20, line, body)
				}
			} else {
				l.cellText(x, c, y+cellPadY+14, values[i], body)
			}
			x += c.width
		}
		y += rowHeight
		l.rect(padding, y-1, tableWidth, 1, colorBorder)
	}
	return y
}

func (l *layout) cellText(x float64, c tableColumn, baseline float64, s string, st style) {
	switch c.align {
	case alignRight:
		l.text(x+c.width-cellPadX, baseline, s, st, alignRight)
	default:
		l.text(x+cellPadX, baseline, s, st, alignLeft)
	}
}

func (l *layout) thanks(m invoice.Model, top float64) float64 {
	st := style{size: 16, weight: italic, color: colorMuted}
	l.text(l.width/2, top+st.size, m.ThankYou, st, alignCenter)
	return top + st.size*1.5
}

func (l *layout) totals(m invoice.Model, top float64) float64 {
	const (
		boxWidth = 320.0
		inset    = 20.0
		step     = 28.0
	)
	lines := m.Totals.Lines()
	due := style{size: 20, weight: bold, color: colorPrimary}
	boxHeight := inset + float64(len(lines))*step + 1 + 10 + due.size*1.4 + inset
	x := l.width - padding - boxWidth
	l.roundRect(x, top, boxWidth, boxHeight, 8, colorPanel)

	y := top + inset
	for _, line := range lines {
		st := style{size: 14, weight: regular, color: colorText}
		if line.Alert {
			st.color = colorAlert
		}
		l.text(x+inset, y+14, line.Label, st, alignLeft)
		l.text(x+boxWidth-inset, y+14, line.Value, st, alignRight)
		y += step
	}
	l.rect(x+inset, y, boxWidth-2*inset, 1, colorBorder)
	y += 1 + 10
	l.text(x+inset, y+due.size, m.Totals.AmountDue.Label, due, alignLeft)
	l.text(x+boxWidth-inset, y+due.size, m.Totals.AmountDue.Value, due, alignRight)
	return top + boxHeight
}

func (l *layout) footer(m invoice.Model, top float64) float64 {
	contentWidth := l.width - 2*padding
	l.rect(padding, top, contentWidth, 1, colorBorder)
	top += 1 + gap

	colWidth := (contentWidth - gap) / 2
	heading := style{size: 16, weight: bold, color: colorPrimary}
	label := style{size: 14, weight: bold, color: colorText}
	value := style{size: 14, weight: regular, color: colorText}
	small := style{size: 12, weight: regular, color: colorMuted}

	ly := top
	l.text(padding, ly+heading.size, "Payment Details:", heading, alignLeft)
	ly += heading.size*1.4 + 10
	payment := [][2]string{
		{"Bank: ", m.Payment.BankName},
		{"Account Number: ", m.Payment.AccountNumber},
		{"IFSC Code: ", m.Payment.IFSCCode},
		{"Account Holder: ", m.Payment.AccountHolder},
		{"UPI ID: ", m.Payment.UPIID},
	}
	for _, row := range payment {
		l.text(padding, ly+14, row[0], label, alignLeft)
		l.text(padding+l.measure(row[0], label), ly+14, row[1], value, alignLeft)
		ly += lineStep
	}

	rx := padding + colWidth + gap
	ry := top
	l.text(rx, ry+heading.size, "Terms & Conditions:", heading, alignLeft)
	ry += heading.size*1.4 + 10
	for _, term := range m.Terms.Lines {
		for i, wrapped := range l.wrap(term, small, colWidth-16) {
			if i == 0 {
				l.text(rx, ry+12, "•", small, alignLeft)
			}
			l.text(rx+16, ry+12, wrapped, small, alignLeft)
			ry += 20
		}
	}

	y := max(ly, ry) + gap
	l.rect(padding, y, contentWidth, 1, colorBorder)
	y += 1 + 12
	faint := style{size: 14, weight: regular, color: colorFaint}
	l.text(l.width/2, y+14, m.DueFooter, faint, alignCenter)
	return y + 14*1.4
}

func prefixed(prefix, value string) string {
	if value == "" {
		return ""
	}
	return prefix + value
}

// text queues s with its baseline at (x, baseline).
func (l *layout) text(x, baseline float64, s string, st style, a align) {
	if s == "" {
		return
	}
	face := l.faces.face(st.weight, st.size)
	if face == nil {
		return
	}
	s = sanitize(l.faces.font(st.weight), s)
	switch a {
	case alignRight:
		x -= l.measureFace(face, s)
	case alignCenter:
		x -= l.measureFace(face, s) / 2
	}
	scale := l.scale
	src := image.NewUniform(st.color)
	l.ops = append(l.ops, func(dst *image.RGBA) {
		d := font.Drawer{
			Dst:  dst,
			Src:  src,
			Face: face,
			Dot:  fixed.P(int(x*scale+0.5), int(baseline*scale+0.5)),
		}
		d.DrawString(s)
	})
}

// measure returns the advance of s in CSS px.
func (l *layout) measure(s string, st style) float64 {
	face := l.faces.face(st.weight, st.size)
	if face == nil {
		return 0
	}
	return l.measureFace(face, sanitize(l.faces.font(st.weight), s))
}

func (l *layout) measureFace(face font.Face, s string) float64 {
	adv := font.MeasureString(face, s)
	return float64(adv) / 64 / l.scale
}

// wrap breaks s on spaces so each line fits width. Words wider than width
// stay on their own line.
func (l *layout) wrap(s string, st style, width float64) []string {
	var lines []string
	for _, paragraph := range strings.Split(s, "\n") {
		words := strings.Fields(paragraph)
		if len(words) == 0 {
			continue
		}
		current := words[0]
		for _, word := range words[1:] {
			candidate := current + " " + word
			if l.measure(candidate, st) <= width {
				current = candidate
				continue
			}
			lines = append(lines, current)
			current = word
		}
		lines = append(lines, current)
	}
	return lines
}

func (l *layout) rect(x, y, w, h float64, c color.Color) {
	scale := l.scale
	l.ops = append(l.ops, func(dst *image.RGBA) {
		r := image.Rect(
			int(x*scale+0.5), int(y*scale+0.5),
			int((x+w)*scale+0.5), int((y+h)*scale+0.5),
		)
		if r.Dy() == 0 {
			r.Max.Y = r.Min.Y + 1
		}
		draw.Draw(dst, r, image.NewUniform(c), image.Point{}, draw.Over)
	})
}

// gradientBar paints a full-width bar fading from the primary to the
// accent color.
func (l *layout) gradientBar(y float64) {
	scale := l.scale
	width := l.width
	l.ops = append(l.ops, func(dst *image.RGBA) {
		x0, x1 := 0, int(width*scale+0.5)
		y0, y1 := int(y*scale+0.5), int((y+barWidth)*scale+0.5)
		span := float64(x1 - x0 - 1)
		if span <= 0 {
			span = 1
		}
		for x := x0; x < x1; x++ {
			c := blend(colorPrimary, colorAccent, float64(x-x0)/span)
			draw.Draw(dst, image.Rect(x, y0, x+1, y1), image.NewUniform(c), image.Point{}, draw.Src)
		}
	})
}

// roundRect fills a rounded rectangle with the vector rasterizer.
func (l *layout) roundRect(x, y, w, h, radius float64, c color.Color) {
	scale := l.scale
	l.ops = append(l.ops, func(dst *image.RGBA) {
		b := dst.Bounds()
		z := vector.NewRasterizer(b.Dx(), b.Dy())
		x0, y0 := float32(x*scale), float32(y*scale)
		x1, y1 := float32((x+w)*scale), float32((y+h)*scale)
		r := float32(radius * scale)

		z.MoveTo(x0+r, y0)
		z.LineTo(x1-r, y0)
		z.QuadTo(x1, y0, x1, y0+r)
		z.LineTo(x1, y1-r)
		z.QuadTo(x1, y1, x1-r, y1)
		z.LineTo(x0+r, y1)
		z.QuadTo(x0, y1, x0, y1-r)
		z.LineTo(x0, y0+r)
		z.QuadTo(x0, y0, x0+r, y0)
		z.ClosePath()
		z.Draw(dst, b, image.NewUniform(c), image.Point{})
	})
}

func rgb(r, g, b uint8) color.RGBA {
	return color.RGBA{R: r, G: g, B: b, A: 0xff}
}

func blend(a, b color.RGBA, t float64) color.RGBA {
	mix := func(p, q uint8) uint8 {
		return uint8(float64(p) + (float64(q)-float64(p))*t + 0.5)
	}
	return color.RGBA{R: mix(a.R, b.R), G: mix(a.G, b.G), B: mix(a.B, b.B), A: 0xff}
}
