package markup

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []Segment
	}{
		{
			name: "plain text",
			in:   "Hello there",
			want: []Segment{{Kind: SegmentText, Text: "Hello there"}},
		},
		{
			name: "breaks and entities",
			in:   "Hello<br>world&nbsp;&amp;&nbsp;friends<br/>&lt;3",
			want: []Segment{{Kind: SegmentText, Text: "Hello\nworld & friends\n<3"}},
		},
		{
			name: "tags stripped",
			in:   `<p><b>Opening</b> <span style="color:red">hours</span></p><p>9 to 5</p>`,
			want: []Segment{{Kind: SegmentText, Text: "Opening hours\n9 to 5"}},
		},
		{
			name: "images split out in order",
			in:   `Before<img src="https://cdn.example.com/a.png">Middle<img src='b.png'/>`,
			want: []Segment{
				{Kind: SegmentText, Text: "Before"},
				{Kind: SegmentImage, Text: "https://cdn.example.com/a.png"},
				{Kind: SegmentText, Text: "Middle"},
				{Kind: SegmentImage, Text: "b.png"},
			},
		},
		{
			name: "image without src ignored",
			in:   `<img alt="x">Text`,
			want: []Segment{{Kind: SegmentText, Text: "Text"}},
		},
		{
			name: "whitespace only",
			in:   "<br><br> &nbsp; ",
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Split(tt.in))
		})
	}
}

func TestTidy(t *testing.T) {
	assert.Equal(t, "a b\n\nc", Tidy("  a \t b \n\n\n\n c  "))
	assert.Equal(t, "bold", Tidy("<b>bold</b>"))
	assert.Equal(t, "1 < 2 and 3 > 2", Tidy("1 < 2 and 3 > 2"))
}

func TestText(t *testing.T) {
	assert.Equal(t, "Hi\nthere", Text(`Hi<img src="x.png">there`))
	assert.Equal(t, "Orders 1 < 2 items and 3 > 2 ship free", Text("Orders 1 &lt; 2 items and 3 &gt; 2 ship free"))
	assert.Equal(t, "a bold move", Text("a &lt;b&gt;bold&lt;/b&gt; move"), "double-escaped tags are still removed")
}
