//go:build js && wasm

package main

import (
	"context"
	"fmt"
	"syscall/js"
	"unsafe"

	"github.com/cwbudde/algo-sampler/analysis"
	"github.com/cwbudde/algo-sampler/sampler"
	"github.com/cwbudde/algo-sampler/session"
)

var (
	globalSession *session.Session
	outputBuffer  []float32
	lastLevel     sampler.Level
)

func main() {
	// Keep program running
	c := make(chan struct{})

	js.Global().Set("wasmInit", js.FuncOf(wasmInit))
	js.Global().Set("wasmLoadPad", js.FuncOf(wasmLoadPad))
	js.Global().Set("wasmTrigger", js.FuncOf(wasmTrigger))
	js.Global().Set("wasmStop", js.FuncOf(wasmStop))
	js.Global().Set("wasmStopAll", js.FuncOf(wasmStopAll))
	js.Global().Set("wasmSetLoopMode", js.FuncOf(wasmSetLoopMode))
	js.Global().Set("wasmSetBypass", js.FuncOf(wasmSetBypass))
	js.Global().Set("wasmSetEffect", js.FuncOf(wasmSetEffect))
	js.Global().Set("wasmLoadIR", js.FuncOf(wasmLoadIR))
	js.Global().Set("wasmToggleStep", js.FuncOf(wasmToggleStep))
	js.Global().Set("wasmToggleSequencer", js.FuncOf(wasmToggleSequencer))
	js.Global().Set("wasmSetBPM", js.FuncOf(wasmSetBPM))
	js.Global().Set("wasmCurrentStep", js.FuncOf(wasmCurrentStep))
	js.Global().Set("wasmToggleRecord", js.FuncOf(wasmToggleRecord))
	js.Global().Set("wasmRenderPerformance", js.FuncOf(wasmRenderPerformance))
	js.Global().Set("wasmLevel", js.FuncOf(wasmLevel))
	js.Global().Set("wasmProcessBlock", js.FuncOf(wasmProcessBlock))
	js.Global().Set("wasmGetMemoryBuffer", js.FuncOf(wasmGetMemoryBuffer))

	println("WASM sampler module loaded")
	<-c
}

func wasmInit(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return nil
	}
	sampleRate := args[0].Int()

	s, err := session.New(session.Config{SampleRate: sampleRate})
	if err != nil {
		println("Sampler init failed:", err.Error())
		return nil
	}
	globalSession = s
	s.StartMetering(func(l sampler.Level) { lastLevel = l })

	// Pre-allocate output buffer for one render quantum
	outputBuffer = make([]float32, sampler.BlockSize*2)

	println("Sampler initialized at", sampleRate, "Hz")
	return nil
}

// wasmLoadPad(pad, arrayBuffer, measure, start, end) decodes slice audio
// fetched by the page and binds it to a pad.
func wasmLoadPad(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 || globalSession == nil {
		return nil
	}
	pad := args[0].Int()
	data := copyBytes(args[1])
	if len(data) == 0 {
		println("pad data is empty")
		return nil
	}
	slice := analysis.Slice{Measure: pad}
	if len(args) >= 5 {
		slice.Measure = args[2].Int()
		slice.StartTime = args[3].Float()
		slice.EndTime = args[4].Float()
	}

	buf, err := sampler.DecodeBuffer(data, globalSession.SampleRate())
	if err != nil {
		println("Failed to decode pad", pad, ":", err.Error())
		return nil
	}
	key := fmt.Sprintf("js://pad/%d/%d", pad, slice.Measure)
	globalSession.Cache().Put(key, buf)
	if err := globalSession.Assign(context.Background(), pad, slice, key); err != nil {
		println("Failed to assign pad:", err.Error())
	}
	return nil
}

func wasmTrigger(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 || globalSession == nil {
		return nil
	}
	if err := globalSession.Trigger(args[0].Int()); err != nil {
		println(err.Error())
	}
	return nil
}

func wasmStop(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 || globalSession == nil {
		return nil
	}
	_ = globalSession.Stop(args[0].Int())
	return nil
}

func wasmStopAll(this js.Value, args []js.Value) interface{} {
	if globalSession != nil {
		globalSession.StopAll()
	}
	return nil
}

func wasmSetLoopMode(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 || globalSession == nil {
		return nil
	}
	globalSession.SetLoopMode(args[0].Bool())
	return nil
}

func wasmSetBypass(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 || globalSession == nil {
		return nil
	}
	globalSession.SetBypass(args[0].Bool())
	return nil
}

// wasmSetEffect(name, value) sets one effect parameter. Filter types are passed by name.
func wasmSetEffect(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 || globalSession == nil {
		return nil
	}
	fx := globalSession.Effects()
	var err error
	switch name := args[0].String(); name {
	case "filterType":
		var t sampler.FilterType
		if t, err = sampler.ParseFilterType(args[1].String()); err == nil {
			err = fx.SetFilterType(t)
		}
	case "filterFrequency":
		err = fx.SetFilterFrequency(args[1].Float())
	case "filterResonance":
		err = fx.SetFilterResonance(args[1].Float())
	case "delayTime":
		err = fx.SetDelayTime(args[1].Float())
	case "delayFeedback":
		err = fx.SetDelayFeedback(args[1].Float())
	case "delayMix":
		err = fx.SetDelayMix(args[1].Float())
	case "reverbMix":
		err = fx.SetReverbMix(args[1].Float())
	case "masterVolume":
		err = fx.SetMasterVolume(args[1].Float())
	case "playbackRate":
		err = globalSession.SetPlaybackRate(args[1].Float())
	default:
		err = fmt.Errorf("unknown effect %q", name)
	}
	if err != nil {
		println(err.Error())
		return false
	}
	return true
}

func wasmLoadIR(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 || globalSession == nil {
		return nil
	}
	data := copyBytes(args[0])
	if len(data) == 0 {
		println("IR data is empty")
		return nil
	}
	buf, err := sampler.DecodeBuffer(data, globalSession.SampleRate())
	if err != nil {
		println("Failed to decode IR:", err.Error())
		return nil
	}
	if err := globalSession.Effects().SetReverbIR(buf.Left, buf.Right); err != nil {
		println("Failed to set IR:", err.Error())
		return nil
	}
	println("IR loaded successfully:", len(data), "bytes")
	return nil
}

func wasmToggleStep(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 || globalSession == nil {
		return false
	}
	on, err := globalSession.ToggleStep(args[0].Int(), args[1].Int())
	if err != nil {
		println(err.Error())
	}
	return on
}

func wasmToggleSequencer(this js.Value, args []js.Value) interface{} {
	if globalSession == nil {
		return false
	}
	return globalSession.ToggleSequencer()
}

func wasmSetBPM(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 || globalSession == nil {
		return nil
	}
	if err := globalSession.SetBPM(args[0].Float()); err != nil {
		println(err.Error())
	}
	return nil
}

func wasmCurrentStep(this js.Value, args []js.Value) interface{} {
	if globalSession == nil {
		return -1
	}
	return globalSession.Clock().Step()
}

func wasmToggleRecord(this js.Value, args []js.Value) interface{} {
	if globalSession == nil {
		return false
	}
	return globalSession.ToggleRecord()
}

// wasmRenderPerformance returns the recorded take as a WAV Uint8Array, or null.
func wasmRenderPerformance(this js.Value, args []js.Value) interface{} {
	if globalSession == nil {
		return nil
	}
	wav, err := globalSession.RenderPerformance(context.Background())
	if err != nil {
		println("render failed:", err.Error())
		return nil
	}
	if wav == nil {
		return nil
	}
	out := js.Global().Get("Uint8Array").New(len(wav))
	js.CopyBytesToJS(out, wav)
	return out
}

func wasmLevel(this js.Value, args []js.Value) interface{} {
	return map[string]interface{}{
		"value": lastLevel.Value,
		"peak":  lastLevel.Peak,
	}
}

func wasmProcessBlock(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 || globalSession == nil {
		return 0
	}

	numFrames := args[0].Int()
	if numFrames > sampler.BlockSize {
		numFrames = sampler.BlockSize
	}

	output := globalSession.Process(numFrames)
	copy(outputBuffer, output)

	// Return pointer to buffer in WASM linear memory
	ptr := &outputBuffer[0]
	return js.ValueOf(uintptr(unsafe.Pointer(ptr)))
}

func wasmGetMemoryBuffer(this js.Value, args []js.Value) interface{} {
	return js.Global().Get("Go").Get("_inst").Get("exports").Get("mem").Get("buffer")
}

func copyBytes(v js.Value) []byte {
	u8 := v
	if v.Get("BYTES_PER_ELEMENT").IsUndefined() {
		u8 = js.Global().Get("Uint8Array").New(v)
	}
	data := make([]byte, u8.Get("byteLength").Int())
	js.CopyBytesToGo(data, u8)
	return data
}
