package maps

import (
	"context"
	"fmt"
	"time"
)

// mapContainerRectJS returns the viewport rect of the first visible map
// container candidate as [x, y, width, height], or null
const mapContainerRectJS = `(() => {
	const sels = [
		"div.map-container",
		".map-container",
		".ymaps3x0--main-engine-container",
		".ymaps3x0--top-engine-container",
	];
	for (const s of sels) {
		const el = document.querySelector(s);
		if (el && el.offsetParent !== null) {
			const r = el.getBoundingClientRect();
			return [r.x, r.y, r.width, r.height];
		}
	}
	return null;
})()`

// panMap drags the map viewport through a serpentine grid to coax extra
// result tiles into rendering before the harvest. Rows alternate direction,
// with a vertical step between rows. Every failure here is best-effort:
// the caller logs and continues to the harvest regardless.
func (c *LinkCollector) panMap(ctx context.Context, page Page) error {
	grid := c.cfg.PanGrid
	if grid <= 1 {
		return nil
	}

	var rect []float64
	if err := page.Eval(ctx, mapContainerRectJS, &rect); err != nil {
		return err
	}
	if len(rect) != 4 {
		return fmt.Errorf("no map container found")
	}
	w, h := rect[2], rect[3]
	if w < 200 || h < 200 {
		return fmt.Errorf("map container too small: %.0fx%.0f", w, h)
	}

	cx := rect[0] + w/2
	cy := rect[1] + h/2
	step := float64(c.cfg.PanStepPx)

	for row := 0; row < grid; row++ {
		direction := 1.0
		if row%2 == 1 {
			direction = -1.0
		}
		for col := 0; col < grid-1; col++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			dx := -direction * step
			if err := page.Drag(ctx, cx, cy, cx+dx, cy); err != nil {
				return err
			}
			sleepBetween(ctx, 800*time.Millisecond, 1200*time.Millisecond)
		}
		if row < grid-1 {
			if err := page.Drag(ctx, cx, cy, cx, cy-step); err != nil {
				return err
			}
			sleepBetween(ctx, 800*time.Millisecond, 1200*time.Millisecond)
		}
	}
	return nil
}
