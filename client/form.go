package client

import "io"

// FormFile multipart 中的一个文件字段
type FormFile struct {
	Field       string
	Name        string
	ContentType string
	Reader      io.Reader
}

// FormData multipart 表单
type FormData struct {
	Fields map[string]string
	Files  []FormFile
}

// NewImageForm 构造后端需要的 file 字段
func NewImageForm(filename string, r io.Reader) *FormData {
	f := &FormData{}
	f.AddFile("file", filename, "", r)
	return f
}

// Set 设置普通字段，空值会被忽略
func (f *FormData) Set(key, value string) *FormData {
	if value == "" {
		return f
	}
	if f.Fields == nil {
		f.Fields = make(map[string]string)
	}
	f.Fields[key] = value
	return f
}

func (f *FormData) AddFile(field, name, contentType string, r io.Reader) *FormData {
	f.Files = append(f.Files, FormFile{
		Field:       field,
		Name:        name,
		ContentType: contentType,
		Reader:      r,
	})
	return f
}
