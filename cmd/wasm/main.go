//go:build js && wasm

package main

import (
	"context"
	"encoding/json"
	"syscall/js"

	"github.com/alexsbc303/CPD-Cert/pkg/config"
	"github.com/alexsbc303/CPD-Cert/pkg/engine"
	"github.com/alexsbc303/CPD-Cert/pkg/logging"
	"github.com/alexsbc303/CPD-Cert/pkg/pipeline"
)

// NOTE: Each Web Worker loads its own WASM instance. Global state is NOT shared
// across workers. The attendance worker builds globalIndex once; matching
// workers receive it through cpdLoadIndex and never parse the attendance file.

var (
	globalIndex    *engine.AttendeeIndex
	globalSettings = config.Default()
)

func errorJSON(msg string) string {
	out, _ := json.Marshal(map[string]string{"error": msg})
	return string(out)
}

func resultJSON(v any) string {
	out, err := json.Marshal(v)
	if err != nil {
		return errorJSON(err.Error())
	}
	return string(out)
}

func copyBytes(v js.Value) []byte {
	data := make([]byte, v.Get("length").Int())
	js.CopyBytesToGo(data, v)
	return data
}

// settingsArg parses an optional YAML settings string.
func settingsArg(args []js.Value, i int) (*config.Config, error) {
	if len(args) <= i || args[i].Type() != js.TypeString || args[i].String() == "" {
		return config.Default(), nil
	}
	return config.Parse([]byte(args[i].String()))
}

func browserContext() context.Context {
	return logging.WithLogger(context.Background(), &logging.Nop)
}

// loadAttendance handles the cpdLoadAttendance JS function call.
// args[0] = Uint8Array (attendance export bytes)
// args[1] = string (optional settings YAML)
// Returns: JSON with "stats", "table" and "serializedIndex"
func loadAttendance(_ js.Value, args []js.Value) any {
	if len(args) < 1 {
		return errorJSON("cpdLoadAttendance requires the attendance file bytes")
	}
	settings, err := settingsArg(args, 1)
	if err != nil {
		return errorJSON(err.Error())
	}

	att, err := pipeline.LoadAttendance(browserContext(), settings, copyBytes(args[0]))
	if err != nil {
		return errorJSON(err.Error())
	}
	serialized, err := engine.SerializeAttendeeIndex(att.Index)
	if err != nil {
		return errorJSON(err.Error())
	}
	globalIndex = att.Index
	globalSettings = settings

	// The serialized index is how matching workers get the attendance side;
	// they run in separate WASM instances with no shared memory.
	return resultJSON(map[string]any{
		"stats":           att.Index.Stats,
		"table":           att.Table,
		"serializedIndex": serialized,
	})
}

// loadIndex handles the cpdLoadIndex JS function call.
// args[0] = string (serializedIndex from cpdLoadAttendance)
// args[1] = string (optional settings YAML)
func loadIndex(_ js.Value, args []js.Value) any {
	if len(args) < 1 {
		return errorJSON("cpdLoadIndex requires the serialized index JSON")
	}
	settings, err := settingsArg(args, 1)
	if err != nil {
		return errorJSON(err.Error())
	}

	index, err := engine.DeserializeAttendeeIndex([]byte(args[0].String()))
	if err != nil {
		return errorJSON(err.Error())
	}
	globalIndex = index
	globalSettings = settings
	return `{"ok": true}`
}

// match handles the cpdMatch JS function call.
// args[0] = Uint8Array (registration export bytes)
// PRECONDITION: cpdLoadAttendance or cpdLoadIndex ran in this worker.
func match(_ js.Value, args []js.Value) any {
	if globalIndex == nil {
		return errorJSON("attendance index not loaded; call cpdLoadIndex first")
	}
	if len(args) < 1 {
		return errorJSON("cpdMatch requires the registration file bytes")
	}

	ctx := browserContext()
	reg, err := pipeline.LoadRegistration(ctx, globalSettings, copyBytes(args[0]))
	if err != nil {
		return errorJSON(err.Error())
	}
	return resultJSON(map[string]any{
		"registration": reg.Table,
		"report":       pipeline.Reconcile(ctx, globalSettings, reg.Registrants, globalIndex),
	})
}

// reconcile handles the cpdReconcile JS function call for single-worker use.
// args[0] = Uint8Array (registration), args[1] = Uint8Array (attendance)
// args[2] = string (optional settings YAML)
func reconcile(_ js.Value, args []js.Value) any {
	if len(args) < 2 {
		return errorJSON("cpdReconcile requires registration and attendance file bytes")
	}
	settings, err := settingsArg(args, 2)
	if err != nil {
		return errorJSON(err.Error())
	}

	res, err := pipeline.Run(browserContext(), settings, pipeline.Input{
		Registration: copyBytes(args[0]),
		Attendance:   copyBytes(args[1]),
	})
	if err != nil {
		return errorJSON(err.Error())
	}
	return resultJSON(res)
}

func main() {
	js.Global().Set("cpdLoadAttendance", js.FuncOf(loadAttendance))
	js.Global().Set("cpdLoadIndex", js.FuncOf(loadIndex))
	js.Global().Set("cpdMatch", js.FuncOf(match))
	js.Global().Set("cpdReconcile", js.FuncOf(reconcile))

	select {}
}
