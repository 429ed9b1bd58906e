package rules

// nameMatches compares a process name mask with a process name starting from
// the last character of both and walking towards the front. A mask that runs
// out first matches whatever is left of the name, so "chrome.exe" matches
// "c:\apps\chrome.exe". A '*' accepts any run of characters and is resolved by
// backtracking, which also gives a meaning to masks with several '*'.
func nameMatches(mask, name []rune) bool {

	m, n := len(mask), len(name)

	for m > 0 && n > 0 {

		if mask[m-1] == '*' {
			m--
			for n > 0 {
				if nameMatches(mask[:m], name[:n]) {
					return true
				}
				n--
			}
			return m == 0
		}

		if mask[m-1] != name[n-1] {
			return false
		}

		m--
		n--
	}

	if m == 0 {
		return true
	}

	// The name is exhausted and only a leading '*' is left.
	return m == 1 && n == 0 && mask[0] == '*'
}
