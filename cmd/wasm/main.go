//go:build js && wasm

package main

import (
	"encoding/json"
	"log/slog"
	"os"
	"syscall/js"

	"github.com/teeforge/customizer/internal/engine"
	"github.com/teeforge/customizer/internal/geometry"
	"github.com/teeforge/customizer/internal/printarea"
)

var (
	eng               *engine.Engine
	selectionListener js.Value
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	eng = engine.NewEngine(printarea.DefaultFractions, logger)

	api := js.Global().Get("Object").New()

	// --- Commands (frontend → engine) ---
	api.Set("loadDesign", js.FuncOf(loadDesign))
	api.Set("loadSampleDesign", js.FuncOf(loadSampleDesign))
	api.Set("setPrintAreaReference", js.FuncOf(setPrintAreaReference))
	api.Set("clearPrintAreaReference", js.FuncOf(clearPrintAreaReference))
	api.Set("resize", js.FuncOf(resize))
	api.Set("objectMoving", js.FuncOf(gesture(eng.ObjectMoving)))
	api.Set("objectScaling", js.FuncOf(gesture(eng.ObjectScaling)))
	api.Set("objectRotating", js.FuncOf(gesture(eng.ObjectRotating)))
	api.Set("setSelection", js.FuncOf(setSelection))
	api.Set("onSelectionChange", js.FuncOf(onSelectionChange))
	api.Set("dispose", js.FuncOf(dispose))

	// --- Queries (frontend ← engine) ---
	api.Set("printArea", js.FuncOf(printArea))
	api.Set("hitTest", js.FuncOf(hitTest))
	api.Set("overlay", js.FuncOf(overlay))
	api.Set("getDesign", js.FuncOf(getDesign))
	api.Set("drainSelectionEvents", js.FuncOf(drainSelectionEvents))

	js.Global().Set("teeforgeCustomizer", api)
	js.Global().Set("teeforgeWasmReady", js.ValueOf(true))

	// Keep Go runtime alive
	select {}
}

func errorResult(err error) interface{} {
	return js.ValueOf(map[string]interface{}{"error": err.Error()})
}

func okResult() interface{} {
	return js.ValueOf(map[string]interface{}{"ok": true})
}

// flushSelection pushes queued selection changes to the registered
// listener, one call per change.
func flushSelection() {
	if selectionListener.Type() != js.TypeFunction {
		return
	}
	var changes []engine.SelectionChange
	if err := json.Unmarshal([]byte(eng.DrainSelectionEvents()), &changes); err != nil {
		return
	}
	for _, c := range changes {
		if c.ObjectID == "" {
			selectionListener.Invoke(js.Null())
			continue
		}
		selectionListener.Invoke(js.ValueOf(map[string]interface{}{
			"objectId": c.ObjectID,
			"kind":     c.Kind,
		}))
	}
}

// --- Command Handlers ---

func loadDesign(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return js.ValueOf(map[string]interface{}{"error": "missing design JSON"})
	}
	if err := eng.LoadDesign(args[0].String()); err != nil {
		return errorResult(err)
	}
	return okResult()
}

func loadSampleDesign(this js.Value, args []js.Value) interface{} {
	eng.LoadSampleDesign()
	return okResult()
}

// setPrintAreaReference takes the overlay element's rect relative to the
// canvas, or null while the element is unmounted.
func setPrintAreaReference(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 || args[0].IsNull() || args[0].IsUndefined() {
		eng.SetPrintAreaReference(nil)
		return nil
	}
	v := args[0]
	r := geometry.Rect{
		X:      v.Get("left").Float(),
		Y:      v.Get("top").Float(),
		Width:  v.Get("width").Float(),
		Height: v.Get("height").Float(),
	}
	eng.SetPrintAreaReference(&r)
	return nil
}

func clearPrintAreaReference(this js.Value, args []js.Value) interface{} {
	eng.ClearPrintAreaReference()
	return nil
}

func resize(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return nil
	}
	dpr := 0.0
	if len(args) > 2 && args[2].Type() == js.TypeNumber {
		dpr = args[2].Float()
	}
	eng.Resize(args[0].Float(), args[1].Float(), dpr)
	return nil
}

// gesture wraps an engine gesture method: transform JSON in, corrected
// transform JSON out.
func gesture(fn func(string) (string, error)) func(js.Value, []js.Value) interface{} {
	return func(this js.Value, args []js.Value) interface{} {
		if len(args) < 1 {
			return js.ValueOf(map[string]interface{}{"error": "missing transform JSON"})
		}
		out, err := fn(args[0].String())
		if err != nil {
			return errorResult(err)
		}
		return js.ValueOf(out)
	}
}

func setSelection(this js.Value, args []js.Value) interface{} {
	var ids []string
	if len(args) > 0 && args[0].Type() == js.TypeObject {
		arr := args[0]
		length := arr.Length()
		ids = make([]string, length)
		for i := 0; i < length; i++ {
			ids[i] = arr.Index(i).String()
		}
	}
	if err := eng.SetSelection(ids); err != nil {
		return errorResult(err)
	}
	flushSelection()
	return okResult()
}

func onSelectionChange(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		selectionListener = js.Undefined()
		return nil
	}
	selectionListener = args[0]
	return nil
}

func dispose(this js.Value, args []js.Value) interface{} {
	eng.Dispose()
	selectionListener = js.Undefined()
	return nil
}

// --- Query Handlers ---

func printArea(this js.Value, args []js.Value) interface{} {
	r := eng.PrintArea()
	return js.ValueOf(map[string]interface{}{
		"left":   r.Left(),
		"top":    r.Top(),
		"width":  r.Width,
		"height": r.Height,
	})
}

func hitTest(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return js.ValueOf("")
	}
	return js.ValueOf(eng.HitTest(args[0].Float(), args[1].Float()))
}

func overlay(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(eng.OverlayJSON())
}

func getDesign(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(eng.GetDesign())
}

func drainSelectionEvents(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(eng.DrainSelectionEvents())
}
