package types

// CreateTextPart creates a Part with text content
func CreateTextPart(text string) Part {
	return Part{
		Kind: PartKindText,
		Text: &text,
	}
}

// CreateDataPart creates a Part with structured data content
func CreateDataPart(data map[string]any) Part {
	return Part{
		Kind: PartKindData,
		Data: data,
	}
}

// CreateFilePart creates a Part with file content
func CreateFilePart(file *FileContent) Part {
	return Part{
		Kind: PartKindFile,
		File: file,
	}
}

// TextContent returns the concatenation of the message's text parts.
func (m *Message) TextContent() string {
	var text string
	for _, part := range m.Parts {
		if part.Kind == PartKindText && part.Text != nil {
			if text != "" {
				text += "\n"
			}
			text += *part.Text
		}
	}
	return text
}

// FirstDataPart returns the first data part of the message, if any.
func (m *Message) FirstDataPart() (map[string]any, bool) {
	for _, part := range m.Parts {
		if part.Kind == PartKindData && part.Data != nil {
			return part.Data, true
		}
	}
	return nil, false
}
