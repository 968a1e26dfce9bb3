package crudgen

// Version is the tool version stamped into generated file headers.
const Version = "0.4.0"
