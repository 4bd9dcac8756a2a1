/*
 * MIT License
 *
 * Copyright (c) 2021 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 */

package httpserver

import (
	"path"
	"strings"
)

// mimeTable maps a file extension (without the dot, lowercased) to its
// Content-type value. Unknown extensions fall back to text/plain.
var mimeTable = map[string]string{
	"html":  "text/html",
	"xml":   "text/xml",
	"xhtml": "application/xhtml+xml",
	"txt":   "text/plain",
	"rtf":   "application/rtf",
	"pdf":   "application/pdf",
	"word":  "application/msword",
	"png":   "image/png",
	"gif":   "image/gif",
	"jpg":   "image/jpeg",
	"jpeg":  "image/jpeg",
	"au":    "audio/basic",
	"mpeg":  "video/mpeg",
	"mpg":   "video/mpeg",
	"avi":   "video/x-msvideo",
	"gz":    "application/x-gzip",
	"tar":   "application/x-tar",
	"css":   "text/css",
	"js":    "text/javascript",
}

// mimeFor resolves the Content-type for filePath by extension, defaulting to
// text/plain for anything the table doesn't cover.
func mimeFor(filePath string) string {
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(filePath)), ".")
	if m, ok := mimeTable[ext]; ok {
		return m
	}
	return "text/plain"
}
