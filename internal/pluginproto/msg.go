// Package pluginproto implements the request/response wire protocol spoken
// between a container process and a backend plugin child process: BSON
// documents exchanged over the child's stdin/stdout, one document per
// message, framed by BSON's own leading int32 length field.
package pluginproto

// Op names a request's operation. It doubles as the BSON "op" discriminator
// field, mirroring the Rust side's serde-tagged enum.
type Op string

const (
	OpPluginInfo  Op = "plugin-info"
	OpSettings    Op = "settings"
	OpIDSize      Op = "id-size"
	OpBlockSize   Op = "block-size"
	OpIDToBytes   Op = "id-to-bytes"
	OpIDToString  Op = "id-to-string"
	OpOpen        Op = "open"
	OpCreate      Op = "create"
	OpInfo        Op = "info"
	OpAquire      Op = "aquire"
	OpRelease     Op = "release"
	OpReadHeader  Op = "read-header"
	OpWriteHeader Op = "write-header"
	OpRead        Op = "read"
	OpWrite       Op = "write"
	OpDelete      Op = "delete"
	OpQuit        Op = "quit"
)

// Request is one call across the plugin boundary. Only the fields relevant
// to Op are populated; the rest are left zero and omitted from the wire
// encoding.
type Request struct {
	Op Op `bson:"op"`

	IDString  string `bson:"id_string,omitempty"`
	IDBytes   []byte `bson:"id_bytes,omitempty"`
	Settings  []byte `bson:"settings,omitempty"`
	Header    []byte `bson:"header,omitempty"`
	Overwrite bool   `bson:"overwrite,omitempty"`
	Initial   []byte `bson:"initial,omitempty"`
	Data      []byte `bson:"data,omitempty"`
}

// Code discriminates a Response as successful or failed.
type Code string

const (
	CodeOk  Code = "ok"
	CodeErr Code = "err"
)

// ResultKind tags the type of value an Ok response carries.
type ResultKind string

const (
	KindVoid   ResultKind = "void"
	KindU32    ResultKind = "u32"
	KindUsize  ResultKind = "usize"
	KindBytes  ResultKind = "bytes"
	KindString ResultKind = "string"
	KindMap    ResultKind = "map"
)

// ErrorCode discriminates the kind of failure an Err response carries.
type ErrorCode string

const (
	ErrNotApplicable       ErrorCode = "not-applicable"
	ErrInvalidID           ErrorCode = "invalid-id"
	ErrInvalidIDData       ErrorCode = "invalid-id-data"
	ErrInvalidSettings     ErrorCode = "invalid-settings"
	ErrInvalidSettingsData ErrorCode = "invalid-settings-data"
	ErrInvalidInfo         ErrorCode = "invalid-info"
	ErrInvalidHeaderBytes  ErrorCode = "invalid-header-bytes"
	ErrMessage             ErrorCode = "message"
)

// Response is the reply to a Request.
type Response struct {
	Code Code `bson:"code"`

	Kind      ResultKind        `bson:"kind,omitempty"`
	U32       uint32            `bson:"u32,omitempty"`
	Usize     uint64            `bson:"usize,omitempty"`
	Bytes     []byte            `bson:"bytes,omitempty"`
	String    string            `bson:"string,omitempty"`
	Map       map[string]string `bson:"map,omitempty"`
	ErrCode   ErrorCode         `bson:"err_code,omitempty"`
	ErrString string            `bson:"err_string,omitempty"`
}

// OkVoid builds a successful, valueless Response.
func OkVoid() Response { return Response{Code: CodeOk, Kind: KindVoid} }

// OkU32 builds a successful Response carrying a uint32.
func OkU32(v uint32) Response { return Response{Code: CodeOk, Kind: KindU32, U32: v} }

// OkUsize builds a successful Response carrying a length/count.
func OkUsize(v uint64) Response { return Response{Code: CodeOk, Kind: KindUsize, Usize: v} }

// OkBytes builds a successful Response carrying a byte slice.
func OkBytes(v []byte) Response { return Response{Code: CodeOk, Kind: KindBytes, Bytes: v} }

// OkString builds a successful Response carrying a string.
func OkString(v string) Response { return Response{Code: CodeOk, Kind: KindString, String: v} }

// OkMap builds a successful Response carrying a string map.
func OkMap(v map[string]string) Response { return Response{Code: CodeOk, Kind: KindMap, Map: v} }

// ErrResponse builds a failed Response tagged with code and an optional
// human-readable message.
func ErrResponse(code ErrorCode, msg string) Response {
	return Response{Code: CodeErr, ErrCode: code, ErrString: msg}
}

// Err converts a failed Response (Code is CodeErr) into a *ResponseError;
// it returns nil for any other Code.
func (r Response) Err() error {
	if r.Code != CodeErr {
		return nil
	}
	return &ResponseError{Code: r.ErrCode, Msg: r.ErrString}
}

// ResponseError is the Go error form of a failed Response.
type ResponseError struct {
	Code ErrorCode
	Msg  string
}

func (e *ResponseError) Error() string {
	if e.Msg != "" {
		return "plugin: " + e.Msg
	}
	return "plugin: " + string(e.Code)
}
