// Package mvlcerr defines the closed error taxonomy shared by transport,
// dialog, stream and adapter code (§7). Every operation returns a plain
// error; higher level code classifies it via Category instead of the
// exceptions-for-control-flow pattern the original C++ used (see
// DESIGN.md, "mvlcerr").
package mvlcerr

import "fmt"

// Category is the closed set of high level error kinds from §7.
type Category int

const (
	// CategoryNone marks a nil/unclassified error.
	CategoryNone Category = iota
	CategoryConnection
	CategoryTransport
	CategoryProtocol
	CategoryFraming
	CategoryVME
	CategoryResource
)

func (c Category) String() string {
	switch c {
	case CategoryConnection:
		return "Connection"
	case CategoryTransport:
		return "Transport"
	case CategoryProtocol:
		return "Protocol"
	case CategoryFraming:
		return "Framing"
	case CategoryVME:
		return "VME"
	case CategoryResource:
		return "Resource"
	default:
		return "None"
	}
}

// Code is one low-level error code from the closed set. Distinct Code
// values may share a Category.
type Code int

const (
	NoError Code = iota
	IsConnected
	IsDisconnected
	ShortWrite
	ShortRead
	MirrorEmptyRequest
	MirrorEmptyResponse
	MirrorShortResponse
	MirrorNotEqual
	InvalidBufferHeader
	NoResponseReceived
	UnexpectedResponseSize
	CommandArgOutOfRange
	InvalidPipe
	NoVMEResponse
	HostLookupError
	EmptyHostname
	BindLocalError
	SocketError
	ReadTimeout
	WriteTimeout
	UDPPacketChannelOutOfRange
	StackCountExceeded
	StackMemoryExceeded
	StackSyntaxError
	InvalidStackHeader
	StackIndexOutOfRange
	UnexpectedBufferHeader
	NeedMoreData
	InUse
	USBChipConfigError
	BusError
	AllocationFailure
)

var categories = map[Code]Category{
	IsConnected:                CategoryConnection,
	IsDisconnected:             CategoryConnection,
	HostLookupError:            CategoryConnection,
	EmptyHostname:              CategoryConnection,
	BindLocalError:             CategoryConnection,
	InUse:                      CategoryConnection,
	ShortWrite:                 CategoryTransport,
	ShortRead:                  CategoryTransport,
	SocketError:                CategoryTransport,
	ReadTimeout:                CategoryTransport,
	WriteTimeout:               CategoryTransport,
	USBChipConfigError:         CategoryTransport,
	MirrorEmptyRequest:         CategoryProtocol,
	MirrorEmptyResponse:        CategoryProtocol,
	MirrorShortResponse:        CategoryProtocol,
	MirrorNotEqual:             CategoryProtocol,
	InvalidBufferHeader:        CategoryProtocol,
	NoResponseReceived:         CategoryProtocol,
	UnexpectedResponseSize:     CategoryProtocol,
	CommandArgOutOfRange:       CategoryProtocol,
	InvalidPipe:                CategoryProtocol,
	UDPPacketChannelOutOfRange: CategoryFraming,
	StackCountExceeded:         CategoryFraming,
	StackMemoryExceeded:        CategoryFraming,
	StackSyntaxError:           CategoryFraming,
	InvalidStackHeader:         CategoryFraming,
	StackIndexOutOfRange:       CategoryFraming,
	UnexpectedBufferHeader:     CategoryFraming,
	NeedMoreData:               CategoryFraming,
	NoVMEResponse:              CategoryVME,
	BusError:                   CategoryVME,
	AllocationFailure:          CategoryResource,
}

// Error implements error and exposes a Category for classification.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("mvlc: %s", e.Message)
	}

	return fmt.Sprintf("mvlc: error code %d", e.Code)
}

// Category classifies e into one of the §7 error kinds.
func (e *Error) Category() Category {
	if cat, ok := categories[e.Code]; ok {
		return cat
	}

	return CategoryNone
}

// New builds an *Error for code with a formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Timeout reports whether err is a (recoverable) read/write timeout.
func Timeout(err error) bool {
	var e *Error
	if as, ok := err.(*Error); ok {
		e = as
	} else {
		return false
	}

	return e.Code == ReadTimeout || e.Code == WriteTimeout
}
