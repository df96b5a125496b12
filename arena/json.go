package arena

import (
	"fmt"

	"github.com/heapkit/microheap/heaputils"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
)

// BlockJsonData populates a json object with summary information about this heap.
func (h *Heap) BlockJsonData(json jwriter.ObjectState) {
	var metrics heaputils.Metrics
	metrics.Clear()
	h.AddMetrics(&metrics)

	json.Name("TotalBytes").Int(h.Size())
	json.Name("BlockSize").Int(h.blockSize)
	json.Name("UnusedBytes").Int(metrics.FreeBlocks * h.blockSize)
	json.Name("Allocations").Int(metrics.UsedEntries)
	json.Name("UnusedRanges").Int(metrics.FreeEntries)
}

// PrintDetailedMap writes a json object to writer describing the heap's
// occupancy summary followed by every run in address order.
func (h *Heap) PrintDetailedMap(writer *jwriter.Writer) {
	objState := writer.Object()
	defer objState.End()

	h.BlockJsonData(objState)

	h.printDetailedMapRuns(objState)
}

func (h *Heap) printDetailedMapRuns(json jwriter.ObjectState) {
	arrayState := json.Name("Runs").Array()
	defer arrayState.End()

	_ = h.VisitAllRuns(
		func(p Pointer, payload []byte, userData any, free bool) error {
			obj := arrayState.Object()
			defer obj.End()

			obj.Name("Offset").Int(int(p))
			if free {
				obj.Name("Type").String("FREE")
			} else {
				obj.Name("Type").String("ALLOCATED")
			}
			obj.Name("Size").Int(len(payload))

			if !free && userData != nil {
				obj.Name("CustomData").String(fmt.Sprintf("%+v", userData))
			}

			return nil
		})
}

// DetailedMapJson renders PrintDetailedMap's output to a byte slice.
func (h *Heap) DetailedMapJson() ([]byte, error) {
	writer := jwriter.NewWriter()
	h.PrintDetailedMap(&writer)

	err := writer.Error()
	if err != nil {
		return nil, err
	}
	return writer.Bytes(), nil
}
