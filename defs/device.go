package defs

/// ConsoleDevice is the pathname the VFS contract resolves to the console
/// vnode. proc.CreateRunProgram opens it three times to seed stdin/stdout/
/// stderr, exactly as the teacher's proc_create_runprogram does for "con:".
const ConsoleDevice = "con:"
