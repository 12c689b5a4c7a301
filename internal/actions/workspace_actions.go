package actions

// registerWorkspace adds the ws_* group (spec.md §4.3, §4.4). Every path
// argument is resolved through the agent's sandboxed workspace, which is
// the sole guard against traversal and quota violations.
func registerWorkspace(r *Registry) {
	r.Register(Action{
		Name:        "ws_read",
		Description: "Read a file from the agent's workspace.",
		Parameters:  objectSchema(map[string]any{"path": stringProp("workspace-relative path")}, "path"),
		Handler:     handleWsRead,
	})
	r.Register(Action{
		Name:        "ws_write",
		Description: "Write (create or overwrite) a file in the agent's workspace.",
		Parameters: objectSchema(map[string]any{
			"path":    stringProp("workspace-relative path"),
			"content": stringProp("file content"),
		}, "path", "content"),
		Handler: handleWsWrite,
	})
	r.Register(Action{
		Name:        "ws_edit",
		Description: "Replace the single occurrence of `old` with `new` in a workspace file.",
		Parameters: objectSchema(map[string]any{
			"path": stringProp("workspace-relative path"),
			"old":  stringProp("text to replace; must match exactly once"),
			"new":  stringProp("replacement text"),
		}, "path", "old", "new"),
		Handler: handleWsEdit,
	})
	r.Register(Action{
		Name:        "ws_list",
		Description: "List the entries of a workspace directory.",
		Parameters:  objectSchema(map[string]any{"path": stringProp("workspace-relative directory path")}, "path"),
		Handler:     handleWsList,
	})
	r.Register(Action{
		Name:        "ws_mkdir",
		Description: "Create a directory (and any missing parents) in the workspace.",
		Parameters:  objectSchema(map[string]any{"path": stringProp("workspace-relative directory path")}, "path"),
		Handler:     handleWsMkdir,
	})
	r.Register(Action{
		Name:        "ws_delete",
		Description: "Delete a file (not a directory) from the workspace.",
		Parameters:  objectSchema(map[string]any{"path": stringProp("workspace-relative path")}, "path"),
		Handler:     handleWsDelete,
	})
}

func handleWsRead(rc *RunContext, args map[string]any) (Result, error) {
	content, err := rc.Workspace.Read(argString(args, "path"))
	if err != nil {
		return Result{}, err
	}
	return Result{Success: true, Data: map[string]any{"content": string(content)}}, nil
}

func handleWsWrite(rc *RunContext, args map[string]any) (Result, error) {
	path := argString(args, "path")
	if err := rc.Workspace.Write(path, []byte(argString(args, "content"))); err != nil {
		return Result{}, err
	}
	return Result{Success: true, Data: map[string]any{"written": true}, SideEffects: []string{"workspace:" + path}}, nil
}

func handleWsEdit(rc *RunContext, args map[string]any) (Result, error) {
	path := argString(args, "path")
	if err := rc.Workspace.Edit(path, argString(args, "old"), argString(args, "new")); err != nil {
		return Result{}, err
	}
	return Result{Success: true, Data: map[string]any{"edited": true}, SideEffects: []string{"workspace:" + path}}, nil
}

func handleWsList(rc *RunContext, args map[string]any) (Result, error) {
	entries, err := rc.Workspace.List(argString(args, "path"))
	if err != nil {
		return Result{}, err
	}
	items := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		items = append(items, map[string]any{"name": e.Name, "is_dir": e.IsDir, "size": e.Size})
	}
	return Result{Success: true, Data: map[string]any{"entries": items}}, nil
}

func handleWsMkdir(rc *RunContext, args map[string]any) (Result, error) {
	path := argString(args, "path")
	if err := rc.Workspace.Mkdir(path); err != nil {
		return Result{}, err
	}
	return Result{Success: true, Data: map[string]any{"created": true}, SideEffects: []string{"workspace:" + path}}, nil
}

func handleWsDelete(rc *RunContext, args map[string]any) (Result, error) {
	path := argString(args, "path")
	if err := rc.Workspace.Delete(path); err != nil {
		return Result{}, err
	}
	return Result{Success: true, Data: map[string]any{"deleted": true}, SideEffects: []string{"workspace:" + path}}, nil
}
