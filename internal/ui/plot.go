package ui

import (
	"image/color"
	"strconv"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"

	"serial-plotter/internal/render"
)

var (
	plotBackground = color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	plotAxis       = color.NRGBA{R: 0x80, G: 0x80, B: 0x80, A: 0xff}
	plotLine       = color.NRGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff}
	plotLabel      = color.NRGBA{R: 0x30, G: 0x30, B: 0x30, A: 0xff}
)

const (
	plotPadLeft   = 56
	plotPadRight  = 12
	plotPadTop    = 12
	plotPadBottom = 24
)

// plotView draws render instructions as a polyline. Its methods must run on
// the fyne thread.
type plotView struct {
	content *fyne.Container

	bg     *canvas.Rectangle
	xAxis  *canvas.Line
	yAxis  *canvas.Line
	yMax   *canvas.Text
	yMin   *canvas.Text
	xMin   *canvas.Text
	xMax   *canvas.Text
	lines  []*canvas.Line
	instr  render.Instruction
	points []render.Point
}

func newPlotView() *plotView {
	p := &plotView{
		bg:    canvas.NewRectangle(plotBackground),
		xAxis: canvas.NewLine(plotAxis),
		yAxis: canvas.NewLine(plotAxis),
		yMax:  newAxisLabel(),
		yMin:  newAxisLabel(),
		xMin:  newAxisLabel(),
		xMax:  newAxisLabel(),
	}
	p.instr = render.Instruction{
		X: render.Range{Min: 0, Max: render.DefaultVisiblePoints},
		Y: render.Range{Min: 0, Max: 100},
	}
	p.content = container.New(&plotLayout{p: p}, p.fixedObjects()...)
	p.updateLabels()
	return p
}

func newAxisLabel() *canvas.Text {
	t := canvas.NewText("", plotLabel)
	t.TextSize = 11
	return t
}

func (p *plotView) show(in render.Instruction) {
	p.instr = in

	// Only points inside the x-range are drawn.
	start := 0
	for start < len(in.Points) && in.Points[start].X < in.X.Min {
		start++
	}
	p.points = in.Points[start:]

	need := max(0, len(p.points)-1)
	for len(p.lines) < need {
		l := canvas.NewLine(plotLine)
		l.StrokeWidth = 1.5
		p.lines = append(p.lines, l)
	}

	objects := p.fixedObjects()
	for _, l := range p.lines[:need] {
		objects = append(objects, l)
	}
	p.content.Objects = objects
	p.updateLabels()
	p.content.Refresh()
}

func (p *plotView) fixedObjects() []fyne.CanvasObject {
	return []fyne.CanvasObject{p.bg, p.xAxis, p.yAxis, p.yMax, p.yMin, p.xMin, p.xMax}
}

func (p *plotView) updateLabels() {
	p.yMax.Text = formatTick(p.instr.Y.Max)
	p.yMin.Text = formatTick(p.instr.Y.Min)
	p.xMin.Text = formatTick(p.instr.X.Min)
	p.xMax.Text = formatTick(p.instr.X.Max)
}

func formatTick(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}

type plotLayout struct {
	p *plotView
}

func (l *plotLayout) MinSize([]fyne.CanvasObject) fyne.Size {
	return fyne.NewSize(400, 250)
}

func (l *plotLayout) Layout(_ []fyne.CanvasObject, size fyne.Size) {
	p := l.p
	p.bg.Move(fyne.NewPos(0, 0))
	p.bg.Resize(size)

	left, top := float32(plotPadLeft), float32(plotPadTop)
	right, bottom := size.Width-plotPadRight, size.Height-plotPadBottom
	if right <= left || bottom <= top {
		return
	}

	p.xAxis.Position1 = fyne.NewPos(left, bottom)
	p.xAxis.Position2 = fyne.NewPos(right, bottom)
	p.yAxis.Position1 = fyne.NewPos(left, top)
	p.yAxis.Position2 = fyne.NewPos(left, bottom)

	p.yMax.Move(fyne.NewPos(4, top-6))
	p.yMin.Move(fyne.NewPos(4, bottom-12))
	p.xMin.Move(fyne.NewPos(left, bottom+4))
	p.xMax.Move(fyne.NewPos(right-p.xMax.MinSize().Width, bottom+4))

	xs := p.instr.X.Max - p.instr.X.Min
	ys := p.instr.Y.Max - p.instr.Y.Min
	if xs <= 0 {
		xs = 1
	}
	if ys <= 0 {
		ys = 1
	}
	toPos := func(pt render.Point) fyne.Position {
		x := left + float32((pt.X-p.instr.X.Min)/xs)*(right-left)
		y := bottom - float32((pt.Y-p.instr.Y.Min)/ys)*(bottom-top)
		return fyne.NewPos(x, y)
	}

	for i := 0; i+1 < len(p.points) && i < len(p.lines); i++ {
		p.lines[i].Position1 = toPos(p.points[i])
		p.lines[i].Position2 = toPos(p.points[i+1])
	}
}
