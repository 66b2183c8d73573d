package initcmd

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/user"
	"path/filepath"
	"runtime"
	"strings"
)

// Options configures the init command behavior.
type Options struct {
	DryRun bool
	Force  bool
	Writer io.Writer // Output writer (defaults to os.Stdout)
}

// InstallFile represents a file to be installed under the project root.
type InstallFile struct {
	Path    string // Relative path within the project directory
	Content string // File content
}

// Result contains the outcome of the init operation.
type Result struct {
	TargetDir string
	Created   []string
	Appended  []string
	Skipped   []string
	Unchanged []string
	Warnings  []string
}

// FileStatus represents the status of a file to be installed.
type FileStatus struct {
	Path      string
	Exists    bool
	Unchanged bool
	Diff      string
}

// BuildFileList returns the scaffold files for a new grblctl project.
func BuildFileList() []InstallFile {
	return []InstallFile{
		{
			Path:    "config.yaml",
			Content: MustReadTemplate("config.yaml"),
		},
		{
			Path:    "macros/README.md",
			Content: MustReadTemplate("macros-readme.md"),
		},
	}
}

// Run executes the init command with the given options, scaffolding a
// .grblctl project directory and reporting serial-access prerequisites.
func Run(opts Options) (*Result, error) {
	if opts.Writer == nil {
		opts.Writer = os.Stdout
	}

	targetDir := ".grblctl"
	files := BuildFileList()
	statuses := checkFileStatuses(targetDir, files)

	result := &Result{TargetDir: targetDir}
	result.Warnings = checkSerialPrerequisites()

	if opts.DryRun {
		return showDryRun(opts.Writer, targetDir, files, statuses, result)
	}

	var changedFiles []FileStatus
	for _, s := range statuses {
		if s.Exists && !s.Unchanged {
			changedFiles = append(changedFiles, s)
		}
	}

	if len(changedFiles) > 0 && !opts.Force {
		return showChanges(opts.Writer, targetDir, statuses, result)
	}

	if err := installFiles(opts.Writer, targetDir, files, statuses, opts.Force, result); err != nil {
		return result, err
	}

	if err := appendGitignore(opts.Writer, result); err != nil {
		return result, err
	}

	for _, w := range result.Warnings {
		_, _ = fmt.Fprintf(opts.Writer, "warning: %s\n", w)
	}

	_, _ = fmt.Fprintln(opts.Writer)
	_, _ = fmt.Fprintln(opts.Writer, "grblctl project initialized successfully!")
	_, _ = fmt.Fprintln(opts.Writer, "Edit .grblctl/config.yaml to set your serial port, then run 'grblctl start'.")

	return result, nil
}

// checkSerialPrerequisites returns non-fatal warnings about the local
// environment's ability to open a serial device.
func checkSerialPrerequisites() []string {
	var warnings []string

	if runtime.GOOS != "linux" {
		return warnings
	}

	u, err := user.Current()
	if err != nil {
		return warnings
	}

	if !inGroup(u.Username, "dialout") {
		warnings = append(warnings,
			"user not in the 'dialout' group; opening a serial port may require "+
				"sudo or 'sudo usermod -aG dialout "+u.Username+"' (logout required to take effect)")
	}

	return warnings
}

// inGroup reports whether username belongs to groupName, via the `groups`
// command (avoids a cgo dependency on NSS group lookups).
func inGroup(username, groupName string) bool {
	out, err := exec.Command("groups", username).Output()
	if err != nil {
		return true // can't tell; don't warn spuriously
	}
	for _, g := range strings.Fields(string(out)) {
		if strings.TrimSuffix(g, ":") == groupName {
			return true
		}
	}
	return false
}

func checkFileStatuses(targetDir string, files []InstallFile) []FileStatus {
	var statuses []FileStatus
	for _, f := range files {
		status := FileStatus{Path: f.Path}
		path := filepath.Join(targetDir, f.Path)

		existingContent, err := os.ReadFile(path)
		if err == nil {
			status.Exists = true
			if string(existingContent) == f.Content {
				status.Unchanged = true
			} else {
				status.Diff = UnifiedDiff("existing", "new", string(existingContent), f.Content)
			}
		}

		statuses = append(statuses, status)
	}
	return statuses
}

func showDryRun(w io.Writer, targetDir string, files []InstallFile, statuses []FileStatus, result *Result) (*Result, error) {
	_, _ = fmt.Fprintln(w, "DRY RUN - No changes will be made")
	_, _ = fmt.Fprintln(w)

	statusMap := make(map[string]FileStatus)
	for _, s := range statuses {
		statusMap[s.Path] = s
	}

	for _, f := range files {
		path := filepath.Join(targetDir, f.Path)
		status := statusMap[f.Path]
		switch {
		case status.Exists && status.Unchanged:
			_, _ = fmt.Fprintf(w, "Already up to date: %s\n", path)
			result.Unchanged = append(result.Unchanged, f.Path)
		case status.Exists:
			_, _ = fmt.Fprintf(w, "Would overwrite (has changes): %s\n", path)
			_, _ = fmt.Fprintln(w, status.Diff)
			result.Skipped = append(result.Skipped, f.Path)
		default:
			_, _ = fmt.Fprintf(w, "Would create: %s\n", path)
			result.Created = append(result.Created, f.Path)
		}
	}

	for _, warning := range result.Warnings {
		_, _ = fmt.Fprintf(w, "warning: %s\n", warning)
	}

	_, _ = fmt.Fprintln(w, "Run without --dry-run to apply changes.")
	return result, nil
}

func showChanges(w io.Writer, targetDir string, statuses []FileStatus, result *Result) (*Result, error) {
	var changed, unchanged []FileStatus
	for _, s := range statuses {
		if s.Exists {
			if s.Unchanged {
				unchanged = append(unchanged, s)
			} else {
				changed = append(changed, s)
			}
		}
	}

	if len(changed) > 0 {
		_, _ = fmt.Fprintln(w, "The following files have changes:")
		_, _ = fmt.Fprintln(w)
		for _, s := range changed {
			path := filepath.Join(targetDir, s.Path)
			_, _ = fmt.Fprintf(w, "%s:\n", path)
			_, _ = fmt.Fprintln(w, s.Diff)
			result.Skipped = append(result.Skipped, s.Path)
		}
	}

	if len(unchanged) > 0 {
		_, _ = fmt.Fprintln(w, "Already up to date:")
		for _, s := range unchanged {
			_, _ = fmt.Fprintf(w, "  %s\n", filepath.Join(targetDir, s.Path))
			result.Unchanged = append(result.Unchanged, s.Path)
		}
		_, _ = fmt.Fprintln(w)
	}

	_, _ = fmt.Fprintln(w, "Use --force to overwrite changed files.")
	return result, fmt.Errorf("files have changes (use --force to overwrite)")
}

func installFiles(w io.Writer, targetDir string, files []InstallFile, statuses []FileStatus, force bool, result *Result) error {
	statusMap := make(map[string]FileStatus)
	for _, s := range statuses {
		statusMap[s.Path] = s
	}

	for _, f := range files {
		path := filepath.Join(targetDir, f.Path)

		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return fmt.Errorf("create directory %s: %w", filepath.Dir(path), err)
		}

		status := statusMap[f.Path]
		switch {
		case status.Exists && status.Unchanged:
			_, _ = fmt.Fprintf(w, "Already up to date: %s\n", path)
			result.Unchanged = append(result.Unchanged, f.Path)
		case status.Exists && force:
			if err := os.WriteFile(path, []byte(f.Content), 0644); err != nil {
				return fmt.Errorf("write %s: %w", path, err)
			}
			_, _ = fmt.Fprintf(w, "Overwritten: %s\n", path)
			result.Appended = append(result.Appended, f.Path)
		case status.Exists:
			_, _ = fmt.Fprintf(w, "Skipped (has changes): %s\n", path)
			result.Skipped = append(result.Skipped, f.Path)
		default:
			if err := os.WriteFile(path, []byte(f.Content), 0644); err != nil {
				return fmt.Errorf("write %s: %w", path, err)
			}
			_, _ = fmt.Fprintf(w, "Created: %s\n", path)
			result.Created = append(result.Created, f.Path)
		}
	}

	return nil
}

const (
	managedSectionBegin = "<grblctl-managed>"
	managedSectionEnd   = "</grblctl-managed>"
)

// appendGitignore merges the runtime-file ignore patterns into the
// project's .gitignore, using the same managed-section convention the
// daemon's config scaffold relies on elsewhere.
func appendGitignore(w io.Writer, result *Result) error {
	const path = ".gitignore"
	section := strings.TrimSpace(MustReadTemplate("gitignore-append.md"))
	wrapped := managedSectionBegin + "\n" + section + "\n" + managedSectionEnd

	existing := ""
	if data, err := os.ReadFile(path); err == nil {
		existing = string(data)
	}

	if hasManagedSection(existing) {
		beginIdx := strings.Index(existing, managedSectionBegin)
		endIdx := strings.Index(existing, managedSectionEnd)
		current := existing[beginIdx : endIdx+len(managedSectionEnd)]
		if strings.TrimSpace(current) == strings.TrimSpace(wrapped) {
			_, _ = fmt.Fprintf(w, "Already up to date: %s\n", path)
			result.Unchanged = append(result.Unchanged, path)
			return nil
		}
	}

	newContent := handleManagedSection(existing, wrapped)
	if err := os.WriteFile(path, []byte(newContent), 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	if existing == "" {
		_, _ = fmt.Fprintf(w, "Created: %s\n", path)
		result.Created = append(result.Created, path)
	} else {
		_, _ = fmt.Fprintf(w, "Updated: %s\n", path)
		result.Appended = append(result.Appended, path)
	}
	return nil
}

// handleManagedSection replaces the content between the managed-section
// markers, or appends it if no managed section exists yet.
func handleManagedSection(existingContent, newSection string) string {
	beginIdx := strings.Index(existingContent, managedSectionBegin)
	endIdx := strings.Index(existingContent, managedSectionEnd)

	if beginIdx >= 0 && endIdx > beginIdx {
		before := strings.TrimRight(existingContent[:beginIdx], "\n")
		after := strings.TrimLeft(existingContent[endIdx+len(managedSectionEnd):], "\n")

		if before == "" {
			if after == "" {
				return newSection
			}
			return newSection + "\n\n" + after
		}
		if after == "" {
			return before + "\n\n" + newSection
		}
		return before + "\n\n" + newSection + "\n\n" + after
	}

	if len(existingContent) > 0 {
		return strings.TrimRight(existingContent, "\n") + "\n\n" + newSection
	}
	return newSection
}

func hasManagedSection(content string) bool {
	return strings.Contains(content, managedSectionBegin) && strings.Contains(content, managedSectionEnd)
}
