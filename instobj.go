package instmem

import (
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/nvkit/instmem/memutils"
	"github.com/nvkit/instmem/memutils/heap"
)

type backendKind byte

const (
	backendNone backendKind = iota
	backendContiguous
	backendIommu
)

var backendKindMapping = make(map[backendKind]string)

func (k backendKind) String() string {
	return backendKindMapping[k]
}

func init() {
	backendKindMapping[backendNone] = "backendNone"
	backendKindMapping[backendContiguous] = "backendContiguous"
	backendKindMapping[backendIommu] = "backendIommu"
}

// Object is a single live instance object: a span of instance memory the device
// interprets as a structure, such as a page table, a channel's state block, or a
// hash table. The backing memory lives on the host; the device sees it at
// Offset, and the driver reads and writes it word by word through the window.
//
// An Object is initialized by InstMem.Alloc and becomes invalid again after
// InstMem.Free.
type Object struct {
	parentInstMem *InstMem

	gpuOffset uint64
	size      uint64
	alignment uint64
	flags     AllocFlags
	kind      backendKind
	name      string

	mem   CoherentMemory
	pages []Page
	area  heap.Range

	prevObject *Object
	nextObject *Object
}

var _ memutils.Accessor32 = &Object{}

func (o *Object) init(instMem *InstMem) {
	o.parentInstMem = instMem
	o.gpuOffset = 0
	o.size = 0
	o.alignment = 0
	o.flags = 0
	o.kind = backendNone
	o.name = ""
	o.mem = nil
	o.pages = nil
	o.area = heap.Range{Handle: heap.NoRange}
	o.prevObject = nil
	o.nextObject = nil
}

func (o *Object) initContiguousObject(mem CoherentMemory, size uint64, alignment uint64, flags AllocFlags) {
	if o.kind != backendNone {
		panic("attempting to init an object that has already been initialized")
	}
	if mem == nil {
		panic("attempting to init a contiguous object using nil backing memory")
	}
	o.kind = backendContiguous
	o.gpuOffset = mem.BusAddress()
	o.size = size
	o.alignment = alignment
	o.flags = flags
	o.mem = mem
}

func (o *Object) initIommuObject(pages []Page, area heap.Range, gpuOffset uint64, size uint64, alignment uint64, flags AllocFlags) {
	if o.kind != backendNone {
		panic("attempting to init an object that has already been initialized")
	}
	if len(pages) == 0 {
		panic("attempting to init an iommu object using no backing pages")
	}
	o.kind = backendIommu
	o.gpuOffset = gpuOffset
	o.size = size
	o.alignment = alignment
	o.flags = flags
	o.pages = pages
	o.area = area
}

func (o *Object) SetName(name string) {
	o.name = name
}

func (o *Object) Name() string {
	return o.name
}

// Offset returns the object's address in the device's instance-memory space.
func (o *Object) Offset() uint64 { return o.gpuOffset }

// Size returns the object's size in bytes, after any rounding applied by Alloc.
func (o *Object) Size() uint64 { return o.size }

// Alignment returns the alignment the object was allocated at.
func (o *Object) Alignment() uint64 { return o.alignment }

// Read32 reads the naturally aligned 32-bit word at offset bytes into the
// object, through the window.
func (o *Object) Read32(offset uint64) uint32 {
	if o.kind == backendNone {
		panic("attempted to read from an object that is not live")
	}

	return o.parentInstMem.window.read32(o.gpuOffset + offset)
}

// Write32 writes the naturally aligned 32-bit word at offset bytes into the
// object, through the window.
func (o *Object) Write32(offset uint64, value uint32) {
	if o.kind == backendNone {
		panic("attempted to write to an object that is not live")
	}

	o.parentInstMem.window.write32(o.gpuOffset+offset, value)
}

func (o *Object) printParameters(json *jwriter.ObjectState) {
	json.Name("Type").String(o.kind.String())
	json.Name("Offset").Int(int(o.gpuOffset))
	json.Name("Size").Int(int(o.size))

	if o.name != "" {
		json.Name("Name").String(o.name)
	}
}
