package collab

// 编辑操作：对会话内容的一次 insert / delete / replace
// position 以 rune 为单位，相对于应用前的内容

type OperationType string

const (
	OpInsert  OperationType = "insert"
	OpDelete  OperationType = "delete"
	OpReplace OperationType = "replace"
)

// 单个会话内容的上限（rune 数）
const MaxContentLength = 100_000

type Operation struct {
	Type     OperationType `json:"type"`
	Position int           `json:"position"`
	Content  string        `json:"content,omitempty"` // insert / replace
	Length   int           `json:"length,omitempty"`  // delete / replace
}

// Apply 将操作应用到 content 上，返回新内容。
// 校验顺序：类型 -> 位置（相对应用前内容）-> 结果长度上限。
// 返回错误时 content 不变（纯函数，不修改入参）。
func (op Operation) Apply(content string) (string, error) {
	switch op.Type {
	case OpInsert, OpDelete, OpReplace:
	default:
		return "", ErrInvalidOperationType
	}

	runes := []rune(content)
	if op.Position < 0 || op.Position > len(runes) {
		return "", ErrInvalidPosition
	}
	if op.Length < 0 {
		return "", ErrInvalidPosition
	}

	// delete/replace 的删除区间允许越界，截断到内容末尾
	end := op.Position + op.Length
	if end > len(runes) {
		end = len(runes)
	}

	var out []rune
	switch op.Type {
	case OpInsert:
		ins := []rune(op.Content)
		out = make([]rune, 0, len(runes)+len(ins))
		out = append(out, runes[:op.Position]...)
		out = append(out, ins...)
		out = append(out, runes[op.Position:]...)
	case OpDelete:
		out = make([]rune, 0, len(runes)-(end-op.Position))
		out = append(out, runes[:op.Position]...)
		out = append(out, runes[end:]...)
	case OpReplace:
		ins := []rune(op.Content)
		out = make([]rune, 0, len(runes)-(end-op.Position)+len(ins))
		out = append(out, runes[:op.Position]...)
		out = append(out, ins...)
		out = append(out, runes[end:]...)
	}

	if len(out) > MaxContentLength {
		return "", ErrContentTooLarge
	}
	return string(out), nil
}
