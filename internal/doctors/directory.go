// Package doctors holds the static directory of physicians patients can book.
package doctors

import "strings"

// Doctor is the display data for one physician.
type Doctor struct {
	Name     string `json:"name"`
	FullName string `json:"fullName"`
	Image    string `json:"image"`
}

var directory = []Doctor{
	{Name: "Dr. Green", FullName: "John Green", Image: "/assets/images/dr-green.png"},
	{Name: "Dr. Cameron", FullName: "Leila Cameron", Image: "/assets/images/dr-cameron.png"},
	{Name: "Dr. Livingston", FullName: "David Livingston", Image: "/assets/images/dr-livingston.png"},
	{Name: "Dr. Peter", FullName: "Evan Peter", Image: "/assets/images/dr-peter.png"},
	{Name: "Dr. Powell", FullName: "Jane Powell", Image: "/assets/images/dr-powell.png"},
	{Name: "Dr. Ramirez", FullName: "Alex Ramirez", Image: "/assets/images/dr-ramirez.png"},
	{Name: "Dr. Lee", FullName: "Jasmine Lee", Image: "/assets/images/dr-lee.png"},
	{Name: "Dr. Cruz", FullName: "Alyana Cruz", Image: "/assets/images/dr-cruz.png"},
	{Name: "Dr. Sharma", FullName: "Hardik Sharma", Image: "/assets/images/dr-sharma.png"},
}

// All returns a copy of the directory in display order.
func All() []Doctor {
	out := make([]Doctor, len(directory))
	copy(out, directory)
	return out
}

// Lookup finds a doctor by display name, ignoring case and surrounding space.
func Lookup(name string) (Doctor, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Doctor{}, false
	}
	for _, d := range directory {
		if strings.EqualFold(d.Name, name) {
			return d, true
		}
	}
	return Doctor{}, false
}
