// Package events names the frames exchanged with clients over the
// real-time channel.
package events

// Inbound events (client to server).
const (
	Message        = "message"
	LoadTerminal   = "load_terminal"
	TerminalInput  = "terminal_input"
	TerminalResize = "terminal_resize"
	CloseTerminal  = "close_terminal"
	RepoTree       = "repo_tree"
	CreateRepo     = "create_repo"
	GetFilesData   = "get_files_data"
	SaveData       = "save_data"
)

// Outbound events (server to client).
const (
	MessageBack     = "message-back"
	TerminalLoading = "terminal_loading"
	TerminalInfo    = "terminal_info"
	TerminalSuccess = "terminal_success"
	TerminalData    = "terminal_data"
	TerminalClosed  = "terminal_closed"
	TerminalError   = "terminal_error"
	LoadedTerminal  = "loaded_terminal"
	RepoStructure   = "repo_structure"
	RepoCreated     = "repo_created"
	FilesData       = "files_data"
	FileSaved       = "file_saved"
	FileError       = "file_error"
)
