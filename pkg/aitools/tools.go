package aitools

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Tool names the AI editing service may invoke against a document.
const (
	ToolUpdateByLine    = "update_doc_by_line"
	ToolUpdateByReplace = "update_doc_by_replace"
	ToolInsertAtLine    = "insert_at_line"
	ToolDeleteLines     = "delete_lines"
	ToolAppend          = "append_to_document"
)

// ToolCall is a structured tool invocation returned by the AI service.
type ToolCall struct {
	Name string          `json:"name"`
	Args json.RawMessage `json:"args"`
}

// Result is the structural outcome of executing a tool call. Failures are
// returned, not raised, so the chat layer can relay a readable explanation
// instead of crashing the edit session.
type Result struct {
	Success    bool   `json:"success"`
	NewContent string `json:"newContent,omitempty"`
	Error      string `json:"error,omitempty"`
}

type updateByLineArgs struct {
	StartLine  int    `json:"start_line"`
	EndLine    int    `json:"end_line"`
	NewContent string `json:"new_content"`
}

type updateByReplaceArgs struct {
	OldString  string `json:"old_string"`
	NewString  string `json:"new_string"`
	Occurrence string `json:"occurrence"` // "first", "last" or "all"
}

type insertAtLineArgs struct {
	LineNumber int    `json:"line_number"`
	Content    string `json:"content"`
	Position   string `json:"position"` // "before" or "after"
}

type deleteLinesArgs struct {
	StartLine int `json:"start_line"`
	EndLine   int `json:"end_line"`
}

type appendArgs struct {
	Content string `json:"content"`
}

// Execute applies a tool call against the current document text. All line
// numbers are 1-based and inclusive. Out-of-range or inverted ranges fail
// with a descriptive error rather than silently clamping.
func Execute(call ToolCall, currentContent string) Result {
	lines := strings.Split(currentContent, "\n")

	switch call.Name {
	case ToolUpdateByLine:
		var args updateByLineArgs
		if err := json.Unmarshal(call.Args, &args); err != nil {
			return badArgs(call.Name, err)
		}
		if args.StartLine < 1 || args.EndLine > len(lines) || args.StartLine > args.EndLine {
			return Result{Error: fmt.Sprintf(
				"Invalid line range: %d-%d. Document has %d lines.",
				args.StartLine, args.EndLine, len(lines))}
		}
		newLines := make([]string, 0, len(lines))
		newLines = append(newLines, lines[:args.StartLine-1]...)
		newLines = append(newLines, args.NewContent)
		newLines = append(newLines, lines[args.EndLine:]...)
		return ok(strings.Join(newLines, "\n"))

	case ToolUpdateByReplace:
		var args updateByReplaceArgs
		if err := json.Unmarshal(call.Args, &args); err != nil {
			return badArgs(call.Name, err)
		}
		if !strings.Contains(currentContent, args.OldString) {
			return Result{Error: fmt.Sprintf("Text %q not found in document", args.OldString)}
		}
		switch args.Occurrence {
		case "first":
			return ok(strings.Replace(currentContent, args.OldString, args.NewString, 1))
		case "last":
			idx := strings.LastIndex(currentContent, args.OldString)
			return ok(currentContent[:idx] + args.NewString + currentContent[idx+len(args.OldString):])
		case "all":
			return ok(strings.ReplaceAll(currentContent, args.OldString, args.NewString))
		default:
			return Result{Error: fmt.Sprintf("Invalid occurrence: %q", args.Occurrence)}
		}

	case ToolInsertAtLine:
		var args insertAtLineArgs
		if err := json.Unmarshal(call.Args, &args); err != nil {
			return badArgs(call.Name, err)
		}
		if args.LineNumber < 1 || args.LineNumber > len(lines) {
			return Result{Error: fmt.Sprintf(
				"Invalid line number: %d. Document has %d lines.",
				args.LineNumber, len(lines))}
		}
		insertIndex := args.LineNumber
		if args.Position == "before" {
			insertIndex = args.LineNumber - 1
		}
		newLines := make([]string, 0, len(lines)+1)
		newLines = append(newLines, lines[:insertIndex]...)
		newLines = append(newLines, args.Content)
		newLines = append(newLines, lines[insertIndex:]...)
		return ok(strings.Join(newLines, "\n"))

	case ToolDeleteLines:
		var args deleteLinesArgs
		if err := json.Unmarshal(call.Args, &args); err != nil {
			return badArgs(call.Name, err)
		}
		if args.StartLine < 1 || args.EndLine > len(lines) || args.StartLine > args.EndLine {
			return Result{Error: fmt.Sprintf(
				"Invalid line range: %d-%d. Document has %d lines.",
				args.StartLine, args.EndLine, len(lines))}
		}
		newLines := make([]string, 0, len(lines))
		newLines = append(newLines, lines[:args.StartLine-1]...)
		newLines = append(newLines, lines[args.EndLine:]...)
		return ok(strings.Join(newLines, "\n"))

	case ToolAppend:
		var args appendArgs
		if err := json.Unmarshal(call.Args, &args); err != nil {
			return badArgs(call.Name, err)
		}
		if currentContent == "" {
			return ok(args.Content)
		}
		return ok(currentContent + "\n" + args.Content)

	default:
		return Result{Error: fmt.Sprintf("Unknown function: %s", call.Name)}
	}
}

// FormatWithLineNumbers renders a document the way the AI service sees
// it: one "N. content" row per line, 1-based.
func FormatWithLineNumbers(content string) string {
	if content == "" {
		return "(empty document)"
	}
	lines := strings.Split(content, "\n")
	numbered := make([]string, len(lines))
	for i, line := range lines {
		numbered[i] = fmt.Sprintf("%d. %s", i+1, line)
	}
	return strings.Join(numbered, "\n")
}

func ok(newContent string) Result {
	return Result{Success: true, NewContent: newContent}
}

func badArgs(tool string, err error) Result {
	return Result{Error: fmt.Sprintf("Invalid arguments for %s: %v", tool, err)}
}
