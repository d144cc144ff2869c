package a3interface

/*
#include <stdlib.h>
#include <stdio.h>
#include <string.h>
*/
import "C"
import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unsafe"

	"github.com/OCAP2/coil/internal/dispatcher"
)

// called by Arma to get the version of the extension
//
//export RVExtensionVersion
func RVExtensionVersion(output *C.char, outputsize C.size_t) {
	version, _, _ := current.get()
	replyToSyncArmaCall(version, output, outputsize)
}

// called by Arma when in the format of: "extensionName" callExtension "command"
//
//export RVExtension
func RVExtension(output *C.char, outputsize C.size_t, input *C.char) {
	command := C.GoString(input)

	// Handle built-in timestamp command
	if command == ":TIMESTAMP:" {
		replyToSyncArmaCall(getTimestamp(), output, outputsize)
		return
	}

	name, args := splitCommand(command)
	replyToSyncArmaCall(handle(name, args), output, outputsize)
}

// called by Arma when in the format of: "extensionName" callExtension ["command", ["data"]]
//
//export RVExtensionArgs
func RVExtensionArgs(output *C.char, outputsize C.size_t, input *C.char, argv **C.char, argc C.int) {
	command := C.GoString(input)
	args := parseArgsFromC(argv, argc)
	replyToSyncArmaCall(handle(command, args), output, outputsize)
}

// splitCommand accepts "COMMAND|arg|arg" from hosts that cannot pass an array.
func splitCommand(input string) (string, []string) {
	parts := strings.Split(input, "|")
	return parts[0], parts[1:]
}

// handle routes one call through the dispatcher and formats the reply.
func handle(command string, args []string) string {
	_, errChan, d := current.get()
	if d == nil || !d.HasHandler(command) {
		return formatDispatchResponse(command, nil, fmt.Errorf("%s: no handler registered", command))
	}
	result, err := d.Dispatch(dispatcher.Event{
		Command:   command,
		Args:      args,
		Timestamp: time.Now(),
	})
	if err != nil && errChan != nil {
		select {
		case errChan <- []string{command, err.Error()}:
		default:
		}
	}
	return formatDispatchResponse(command, result, err)
}

// parseArgsFromC converts C argv array to Go string slice
func parseArgsFromC(argv **C.char, argc C.int) []string {
	var offset = unsafe.Sizeof(uintptr(0))
	var data []string
	for index := C.int(0); index < argc; index++ {
		data = append(data, C.GoString(*argv))
		argv = (**C.char)(unsafe.Pointer(uintptr(unsafe.Pointer(argv)) + offset))
	}
	return data
}

// formatDispatchResponse formats the dispatcher result for ArmA. Strings are
// passed through unescaped, everything else is JSON encoded.
func formatDispatchResponse(command string, result any, err error) string {
	if err != nil {
		return fmt.Sprintf(`["error", %q]`, err.Error())
	}
	switch v := result.(type) {
	case nil:
		return `["ok"]`
	case string:
		return fmt.Sprintf(`["ok", "%s"]`, v)
	}
	data, jsonErr := json.Marshal(result)
	if jsonErr != nil {
		return fmt.Sprintf(`["error", %q]`, command+": "+jsonErr.Error())
	}
	return fmt.Sprintf(`["ok", %s]`, data)
}

// replyToSyncArmaCall will respond to a synchronous extension call from Arma
func replyToSyncArmaCall(response string, output *C.char, outputsize C.size_t) {
	result := C.CString(response)
	defer C.free(unsafe.Pointer(result))
	var size = C.strlen(result) + 1
	if size > outputsize {
		size = outputsize
	}
	C.memmove(unsafe.Pointer(output), unsafe.Pointer(result), size)
}

func getTimestamp() string {
	return fmt.Sprintf("%d", time.Now().UTC().UnixNano())
}
